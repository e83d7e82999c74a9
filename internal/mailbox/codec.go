package mailbox

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Objects are Markdown files with a YAML frontmatter header so that a human
// can read and answer them with nothing but a text editor. The frontmatter
// carries the structured fields; free-form text lives in `## `-titled body
// sections.

type questionFrontmatter struct {
	ID        string   `yaml:"id"`
	CreatedAt string   `yaml:"created_at"`
	From      string   `yaml:"from"`
	Status    string   `yaml:"status"`
	Options   []Option `yaml:"options,omitempty"`
}

type responseFrontmatter struct {
	ID        string `yaml:"id"`
	CreatedAt string `yaml:"created_at"`
	From      string `yaml:"from"`
	Answer    string `yaml:"answer"`
}

const (
	sectionQuestion     = "Question"
	sectionContext      = "Context"
	sectionInstructions = "How to respond"
	sectionExtraContext = "Additional context"
)

// EncodeQuestion renders a question to its on-disk form, including the
// generated response instructions for the operator.
func EncodeQuestion(q *Question) ([]byte, error) {
	fm := questionFrontmatter{
		ID:        q.ID,
		CreatedAt: q.CreatedAt.Format(time.RFC3339),
		From:      q.Asker,
		Status:    string(q.Status),
		Options:   q.Options,
	}
	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n")

	writeSection(&b, sectionQuestion, q.Text)
	if q.Context != "" {
		writeSection(&b, sectionContext, q.Context)
	}
	writeSection(&b, sectionInstructions, responseInstructions(q))

	return []byte(b.String()), nil
}

// DecodeQuestion parses an on-disk question object. name is the object name
// used to tag malformed-entry errors.
func DecodeQuestion(name string, data []byte) (*Question, error) {
	head, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, &MalformedEntryError{Name: name, Reason: err.Error()}
	}

	var fm questionFrontmatter
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return nil, &MalformedEntryError{Name: name, Reason: fmt.Sprintf("bad frontmatter: %v", err)}
	}
	if fm.ID == "" {
		return nil, &MalformedEntryError{Name: name, Reason: "missing id"}
	}
	createdAt, err := time.Parse(time.RFC3339, fm.CreatedAt)
	if err != nil {
		return nil, &MalformedEntryError{Name: name, Reason: fmt.Sprintf("bad created_at: %v", err)}
	}
	status := Status(fm.Status)
	if !status.Valid() {
		return nil, &MalformedEntryError{Name: name, Reason: fmt.Sprintf("bad status %q", fm.Status)}
	}
	if fm.From == "" {
		return nil, &MalformedEntryError{Name: name, Reason: "missing from"}
	}

	sections := splitSections(body)
	text := sections[sectionQuestion]
	if text == "" {
		return nil, &MalformedEntryError{Name: name, Reason: "missing question text"}
	}

	return &Question{
		ID:        fm.ID,
		CreatedAt: createdAt,
		Asker:     fm.From,
		Text:      text,
		Options:   fm.Options,
		Context:   sections[sectionContext],
		Status:    status,
		Name:      name,
	}, nil
}

// EncodeResponse renders a response to its on-disk form.
func EncodeResponse(r *Response) ([]byte, error) {
	fm := responseFrontmatter{
		ID:        r.ID,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		From:      r.From,
		Answer:    r.Answer,
	}
	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n")
	if r.ExtraContext != "" {
		writeSection(&b, sectionExtraContext, r.ExtraContext)
	}
	return []byte(b.String()), nil
}

// DecodeResponse parses an on-disk response object, typically hand-written
// by the operator. Missing required fields make the object malformed; it is
// skipped, never deleted.
func DecodeResponse(name string, data []byte) (*Response, error) {
	head, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, &MalformedEntryError{Name: name, Reason: err.Error()}
	}

	var fm responseFrontmatter
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return nil, &MalformedEntryError{Name: name, Reason: fmt.Sprintf("bad frontmatter: %v", err)}
	}
	if fm.ID == "" {
		return nil, &MalformedEntryError{Name: name, Reason: "missing id"}
	}
	createdAt, err := time.Parse(time.RFC3339, fm.CreatedAt)
	if err != nil {
		return nil, &MalformedEntryError{Name: name, Reason: fmt.Sprintf("bad created_at: %v", err)}
	}
	if fm.From == "" {
		return nil, &MalformedEntryError{Name: name, Reason: "missing from"}
	}
	if fm.Answer == "" {
		return nil, &MalformedEntryError{Name: name, Reason: "missing answer"}
	}

	sections := splitSections(body)

	return &Response{
		ID:           fm.ID,
		CreatedAt:    createdAt,
		From:         fm.From,
		Answer:       fm.Answer,
		ExtraContext: sections[sectionExtraContext],
		Name:         name,
	}, nil
}

// splitFrontmatter separates the YAML header (between the first two bare
// `---` lines) from the Markdown body.
func splitFrontmatter(data []byte) (head []byte, body string, err error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var inFrontmatter, closed bool
	var yamlLines, bodyLines []string

	for scanner.Scan() {
		line := scanner.Text()
		if !closed && strings.TrimSpace(line) == "---" {
			if inFrontmatter {
				closed = true
				continue
			}
			inFrontmatter = true
			continue
		}
		if closed {
			bodyLines = append(bodyLines, line)
			continue
		}
		if inFrontmatter {
			yamlLines = append(yamlLines, line)
			continue
		}
		if strings.TrimSpace(line) != "" {
			return nil, "", fmt.Errorf("content before frontmatter")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", err
	}
	if !closed {
		return nil, "", fmt.Errorf("no frontmatter found")
	}
	return []byte(strings.Join(yamlLines, "\n")), strings.Join(bodyLines, "\n"), nil
}

// splitSections collects `## `-titled body sections into a map of heading
// to trimmed content. Text before the first heading is dropped.
func splitSections(body string) map[string]string {
	sections := make(map[string]string)
	var current string
	var lines []string

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(lines, "\n"))
		}
		lines = nil
	}

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return sections
}

func writeSection(b *strings.Builder, heading, content string) {
	b.WriteString("\n## ")
	b.WriteString(heading)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n")
}

// responseInstructions renders the standing instructions embedded in every
// question so the operator knows the expected reply format.
func responseInstructions(q *Question) string {
	var b strings.Builder
	b.WriteString("Write a file named `response-<timestamp>.md` in this directory, where\n")
	b.WriteString("`<timestamp>` is the current time in the same format as this question's id.\n")
	b.WriteString("Start the file with this frontmatter:\n\n")
	fmt.Fprintf(&b, "    ---\n")
	fmt.Fprintf(&b, "    id: %s\n", q.ID)
	fmt.Fprintf(&b, "    created_at: <RFC 3339 timestamp, e.g. %s>\n", q.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "    from: operator\n")
	if len(q.Options) > 0 {
		labels := make([]string, len(q.Options))
		for i, opt := range q.Options {
			labels[i] = opt.Label
		}
		fmt.Fprintf(&b, "    answer: <one of: %s; or free text>\n", strings.Join(labels, ", "))
	} else {
		fmt.Fprintf(&b, "    answer: <free text>\n")
	}
	fmt.Fprintf(&b, "    ---\n\n")
	b.WriteString("Anything under an `## Additional context` heading after the frontmatter\n")
	b.WriteString("is passed along with the answer.")
	return b.String()
}
