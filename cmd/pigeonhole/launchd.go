package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
)

const launchdPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>

	<key>ProgramArguments</key>
	<array>
		<string>{{.ExecPath}}</string>
		<string>start</string>
		<string>--config</string>
		<string>{{.ConfigPath}}</string>
	</array>

	<key>RunAtLoad</key>
	<true/>

	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
		<key>Crashed</key>
		<true/>
	</dict>

	<key>StandardOutPath</key>
	<string>{{.LogDir}}/pigeonhole.log</string>

	<key>StandardErrorPath</key>
	<string>{{.LogDir}}/pigeonhole.error.log</string>

	<key>ProcessType</key>
	<string>Background</string>

	<key>ThrottleInterval</key>
	<integer>5</integer>
</dict>
</plist>
`

type launchdConfig struct {
	Label      string
	ExecPath   string
	ConfigPath string
	LogDir     string
}

const launchdLabel = "com.relayworks.pigeonhole"

func installLaunchd() error {
	fmt.Println("Installing launchd service...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}
	execPath, _ = filepath.Abs(execPath)

	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".pigeonhole")
	configPath := filepath.Join(dataDir, "config.toml")
	logDir := filepath.Join(dataDir, "logs")
	os.MkdirAll(logDir, 0755)

	cfg := launchdConfig{
		Label:      launchdLabel,
		ExecPath:   execPath,
		ConfigPath: configPath,
		LogDir:     logDir,
	}

	tmpl, err := template.New("launchd").Parse(launchdPlistTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	isRoot := os.Geteuid() == 0
	var plistPath string
	if isRoot {
		plistPath = "/Library/LaunchDaemons/" + launchdLabel + ".plist"
	} else {
		plistPath = filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
		os.MkdirAll(filepath.Dir(plistPath), 0755)
	}

	f, err := os.Create(plistPath)
	if err != nil {
		return fmt.Errorf("create plist: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, cfg); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}

	fmt.Printf("Launchd plist installed: %s\n", plistPath)

	if err := exec.Command("launchctl", "load", plistPath).Run(); err != nil {
		fmt.Printf("Warning: launchctl load failed: %v\n", err)
		fmt.Printf("Load it manually with: launchctl load %s\n", plistPath)
	} else {
		fmt.Println("Service loaded and will start on boot")
	}

	fmt.Println("\nManagement commands:")
	fmt.Println("   launchctl start " + launchdLabel)
	fmt.Println("   launchctl stop " + launchdLabel)
	fmt.Println("   launchctl unload " + plistPath)
	fmt.Printf("\nLogs: %s\n", logDir)
	return nil
}

func uninstallLaunchd() error {
	fmt.Println("Uninstalling launchd service...")

	isRoot := os.Geteuid() == 0
	var plistPath string
	if isRoot {
		plistPath = "/Library/LaunchDaemons/" + launchdLabel + ".plist"
	} else {
		home, _ := os.UserHomeDir()
		plistPath = filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
	}

	exec.Command("launchctl", "unload", plistPath).Run()

	if err := os.Remove(plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}

	fmt.Println("Launchd service uninstalled")
	return nil
}
