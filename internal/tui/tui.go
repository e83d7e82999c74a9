// Package tui is the operator's terminal answer board: a Bubble Tea
// program that lists pending questions from the mailbox, shows one in
// detail, and writes responses back as mailbox objects. It talks only to
// the file store, so it works whether or not the relay service is
// running.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/relayworks/pigeonhole/internal/mailbox"
)

var (
	primaryColor = lipgloss.Color("#7C3AED") // violet
	accentColor  = lipgloss.Color("#06B6D4") // cyan
	mutedColor   = lipgloss.Color("#6B7280") // gray
	okColor      = lipgloss.Color("#10B981") // green
	warnColor    = lipgloss.Color("#F59E0B") // amber

	listStyle = lipgloss.NewStyle().
			Width(34).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 1)

	listTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	selectedRow = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	pendingMark  = lipgloss.NewStyle().Foreground(warnColor)
	resolvedMark = lipgloss.NewStyle().Foreground(accentColor)
	archivedMark = lipgloss.NewStyle().Foreground(mutedColor)
	answeredMark = lipgloss.NewStyle().Foreground(okColor)

	detailBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor)

	detailLabel = lipgloss.NewStyle().
			Foreground(mutedColor)

	detailText = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	statusLine = lipgloss.NewStyle().
			Foreground(okColor)
)

// refreshMsg carries a fresh mailbox snapshot into the model.
type refreshMsg struct {
	questions []*mailbox.Question
	responses map[string][]*mailbox.Response
	err       error
}

type answerSavedMsg struct {
	id  string
	err error
}

type tickMsg struct{}

// Model is the Bubble Tea model for the answer board.
type Model struct {
	store *mailbox.Store
	from  string

	questions []*mailbox.Question
	responses map[string][]*mailbox.Response
	cursor    int

	detail    viewport.Model
	composer  textarea.Model
	composing bool
	status    string

	width  int
	height int
	ready  bool

	now func() time.Time
}

// New creates the answer board over an open mailbox store. from is the
// responder identity recorded in every response.
func New(store *mailbox.Store, from string) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your answer, or a number to pick an option..."
	ta.CharLimit = 4096
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return Model{
		store:     store,
		from:      from,
		composer:  ta,
		responses: map[string][]*mailbox.Response{},
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// refreshCmd re-reads the whole mailbox. Malformed entries are dropped
// from the view; the relay logs them.
func (m Model) refreshCmd() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		questions, _, err := store.Questions()
		if err != nil {
			return refreshMsg{err: err}
		}
		responses, _, err := store.Responses()
		if err != nil {
			return refreshMsg{err: err}
		}

		byID := map[string][]*mailbox.Response{}
		for _, r := range responses {
			byID[r.ID] = append(byID[r.ID], r)
		}
		for _, rs := range byID {
			sort.Slice(rs, func(i, j int) bool {
				if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
					return rs[i].CreatedAt.Before(rs[j].CreatedAt)
				}
				return rs[i].Name < rs[j].Name
			})
		}

		// Pending questions first, newest first within each group.
		sort.Slice(questions, func(i, j int) bool {
			pi, pj := questions[i].Status == mailbox.StatusPending, questions[j].Status == mailbox.StatusPending
			if pi != pj {
				return pi
			}
			return questions[i].CreatedAt.After(questions[j].CreatedAt)
		})

		return refreshMsg{questions: questions, responses: byID}
	}
}

func (m Model) saveAnswerCmd(q *mailbox.Question, text string) tea.Cmd {
	store, from, now := m.store, m.from, m.now()
	answer := resolveOption(q, text)
	return func() tea.Msg {
		stamp := store.UniqueID(mailbox.KindResponse, now)
		err := store.PutResponse(stamp, &mailbox.Response{
			ID:        q.ID,
			CreatedAt: now,
			From:      from,
			Answer:    answer,
		})
		return answerSavedMsg{id: q.ID, err: err}
	}
}

// resolveOption maps a bare number to the matching option label, so the
// operator can answer "2" instead of typing the label out.
func resolveOption(q *mailbox.Question, text string) string {
	trimmed := strings.TrimSpace(text)
	if len(q.Options) == 0 {
		return trimmed
	}
	var n int
	if _, err := fmt.Sscanf(trimmed, "%d", &n); err == nil && fmt.Sprintf("%d", n) == trimmed {
		if n >= 1 && n <= len(q.Options) {
			return q.Options[n-1].Label
		}
	}
	return trimmed
}

func (m Model) selected() *mailbox.Question {
	if m.cursor < 0 || m.cursor >= len(m.questions) {
		return nil
	}
	return m.questions[m.cursor]
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.KeyMsg:
		if m.composing {
			switch msg.String() {
			case "esc":
				m.composing = false
				m.composer.Reset()
				m.composer.Blur()
				m.status = ""
				return m, nil
			case "enter":
				text := strings.TrimSpace(m.composer.Value())
				if text == "" {
					return m, nil
				}
				q := m.selected()
				if q == nil {
					m.composing = false
					return m, nil
				}
				m.composing = false
				m.composer.Reset()
				m.composer.Blur()
				return m, m.saveAnswerCmd(q, text)
			case "ctrl+c":
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.composer, cmd = m.composer.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.syncDetail()
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.questions)-1 {
				m.cursor++
				m.syncDetail()
			}
			return m, nil
		case "r":
			return m, m.refreshCmd()
		case "enter", "a":
			q := m.selected()
			if q == nil {
				return m, nil
			}
			if q.Status != mailbox.StatusPending {
				m.status = fmt.Sprintf("question is already %s", q.Status)
				return m, nil
			}
			m.composing = true
			m.status = ""
			m.composer.Focus()
			return m, textarea.Blink
		}

	case refreshMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("mailbox error: %v", msg.err)
			return m, nil
		}
		selectedID := ""
		if q := m.selected(); q != nil {
			selectedID = q.ID
		}
		m.questions = msg.questions
		m.responses = msg.responses
		m.cursor = 0
		for i, q := range m.questions {
			if q.ID == selectedID {
				m.cursor = i
				break
			}
		}
		m.syncDetail()
		return m, nil

	case answerSavedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("write failed: %v", msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("answer recorded for %s", msg.id)
		return m, m.refreshCmd()

	case tickMsg:
		cmds = append(cmds, tickCmd(), m.refreshCmd())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		detailW := m.width - 38
		detailH := m.height - 9
		if detailW < 20 {
			detailW = 20
		}
		if detailH < 5 {
			detailH = 5
		}
		if !m.ready {
			m.detail = viewport.New(detailW, detailH)
			m.ready = true
		} else {
			m.detail.Width = detailW
			m.detail.Height = detailH
		}
		m.composer.SetWidth(detailW - 2)
		m.syncDetail()
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	cmds = append(cmds, cmd)
	m.detail, cmd = m.detail.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) syncDetail() {
	if m.ready {
		m.detail.SetContent(m.renderDetail())
		m.detail.GotoTop()
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading mailbox..."
	}

	pending := 0
	for _, q := range m.questions {
		if q.Status == mailbox.StatusPending {
			pending++
		}
	}
	header := headerStyle.Width(m.width).Render(
		fmt.Sprintf("  pigeonhole answer board  •  %d pending", pending),
	)

	list := m.renderList()
	detail := detailBorder.Render(m.detail.View())

	var right string
	if m.composing {
		right = lipgloss.JoinVertical(lipgloss.Left, detail, m.composer.View())
	} else {
		right = detail
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", right)

	help := "  ↑↓: select │ Enter: answer │ r: refresh │ q: quit"
	if m.composing {
		help = "  Enter: save answer │ Esc: cancel"
	}
	footer := footerStyle.Render(help)
	if m.status != "" {
		footer = lipgloss.JoinHorizontal(lipgloss.Top, footer, "   ", statusLine.Render(m.status))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderList() string {
	var sb strings.Builder
	sb.WriteString(listTitle.Render("  Questions"))
	sb.WriteString("\n")

	if len(m.questions) == 0 {
		sb.WriteString(detailLabel.Render("  mailbox is empty"))
	}

	for i, q := range m.questions {
		mark := statusMark(q, m.responses[q.ID])
		line := fmt.Sprintf("%s %s %s", mark, q.CreatedAt.Format("Jan 02 15:04"), truncate(q.Text, 16))
		if i == m.cursor {
			line = selectedRow.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return listStyle.Height(m.height - 4).Render(sb.String())
}

func statusMark(q *mailbox.Question, rs []*mailbox.Response) string {
	switch q.Status {
	case mailbox.StatusPending:
		if len(rs) > 0 {
			return answeredMark.Render("◉")
		}
		return pendingMark.Render("●")
	case mailbox.StatusResolved:
		return resolvedMark.Render("●")
	default:
		return archivedMark.Render("○")
	}
}

func (m Model) renderDetail() string {
	q := m.selected()
	if q == nil {
		return detailLabel.Padding(1).Render("Nothing selected. Waiting for questions.")
	}

	var sb strings.Builder
	sb.WriteString(detailLabel.Render("ID      "))
	sb.WriteString(detailText.Render(q.ID))
	sb.WriteString("\n")
	sb.WriteString(detailLabel.Render("Status  "))
	sb.WriteString(detailText.Render(string(q.Status)))
	sb.WriteString("\n")
	sb.WriteString(detailLabel.Render("Asker   "))
	sb.WriteString(detailText.Render(q.Asker))
	sb.WriteString("\n\n")
	sb.WriteString(detailText.Render(q.Text))
	sb.WriteString("\n")

	if len(q.Options) > 0 {
		sb.WriteString("\n")
		sb.WriteString(detailLabel.Render("Options"))
		sb.WriteString("\n")
		for i, opt := range q.Options {
			sb.WriteString(detailText.Render(fmt.Sprintf("  %d. %s", i+1, opt.Label)))
			if opt.Description != "" {
				sb.WriteString(detailLabel.Render("  " + opt.Description))
			}
			sb.WriteString("\n")
		}
	}
	if q.Context != "" {
		sb.WriteString("\n")
		sb.WriteString(detailLabel.Render("Context"))
		sb.WriteString("\n")
		sb.WriteString(detailText.Render(q.Context))
		sb.WriteString("\n")
	}

	if rs := m.responses[q.ID]; len(rs) > 0 {
		sb.WriteString("\n")
		sb.WriteString(detailLabel.Render("Responses"))
		sb.WriteString("\n")
		for i, r := range rs {
			prefix := "  "
			if i == 0 {
				prefix = "* " // the earliest response is the one relayed
			}
			sb.WriteString(detailText.Render(fmt.Sprintf("%s%s  %s: %s",
				prefix, r.CreatedAt.Format("15:04:05"), r.From, r.Answer)))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
