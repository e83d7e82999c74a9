package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
)

const systemdUnitTemplate = `[Unit]
Description=Pigeonhole file-mediated question relay
Documentation=https://github.com/relayworks/pigeonhole
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User={{.User}}
Group={{.Group}}
ExecStart={{.ExecPath}} start --config {{.ConfigPath}}
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5s
StandardOutput=journal
StandardError=journal
SyslogIdentifier=pigeonhole

# Security hardening
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=read-only
ReadWritePaths={{.DataDir}}

[Install]
WantedBy=multi-user.target
`

type systemdConfig struct {
	User       string
	Group      string
	ExecPath   string
	ConfigPath string
	DataDir    string
}

func installSystemd() error {
	fmt.Println("Installing systemd service...")

	user := os.Getenv("USER")
	if user == "" {
		user = "pigeonhole"
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("get executable path: %w", err)
	}
	execPath, _ = filepath.Abs(execPath)

	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".pigeonhole")
	configPath := filepath.Join(dataDir, "config.toml")

	cfg := systemdConfig{
		User:       user,
		Group:      user,
		ExecPath:   execPath,
		ConfigPath: configPath,
		DataDir:    dataDir,
	}

	tmpl, err := template.New("systemd").Parse(systemdUnitTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	isRoot := os.Geteuid() == 0
	var unitPath string
	if isRoot {
		unitPath = "/etc/systemd/system/pigeonhole.service"
	} else {
		unitDir := filepath.Join(home, ".config", "systemd", "user")
		os.MkdirAll(unitDir, 0755)
		unitPath = filepath.Join(unitDir, "pigeonhole.service")
	}

	f, err := os.Create(unitPath)
	if err != nil {
		return fmt.Errorf("create unit file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, cfg); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}

	fmt.Printf("Systemd unit installed: %s\n", unitPath)

	var reloadCmd *exec.Cmd
	if isRoot {
		reloadCmd = exec.Command("systemctl", "daemon-reload")
	} else {
		reloadCmd = exec.Command("systemctl", "--user", "daemon-reload")
	}
	if err := reloadCmd.Run(); err != nil {
		fmt.Printf("Warning: systemctl daemon-reload failed: %v\n", err)
	}

	fmt.Println("\nNext steps:")
	if isRoot {
		fmt.Println("   sudo systemctl enable pigeonhole")
		fmt.Println("   sudo systemctl start pigeonhole")
		fmt.Println("   sudo systemctl status pigeonhole")
	} else {
		fmt.Println("   systemctl --user enable pigeonhole")
		fmt.Println("   systemctl --user start pigeonhole")
		fmt.Println("   systemctl --user status pigeonhole")
	}
	return nil
}

func uninstallSystemd() error {
	fmt.Println("Uninstalling systemd service...")

	isRoot := os.Geteuid() == 0
	var unitPath string
	if isRoot {
		unitPath = "/etc/systemd/system/pigeonhole.service"
	} else {
		home, _ := os.UserHomeDir()
		unitPath = filepath.Join(home, ".config", "systemd", "user", "pigeonhole.service")
	}

	var stopCmd *exec.Cmd
	if isRoot {
		stopCmd = exec.Command("systemctl", "stop", "pigeonhole")
		exec.Command("systemctl", "disable", "pigeonhole").Run()
	} else {
		stopCmd = exec.Command("systemctl", "--user", "stop", "pigeonhole")
		exec.Command("systemctl", "--user", "disable", "pigeonhole").Run()
	}
	stopCmd.Run()

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}

	var reloadCmd *exec.Cmd
	if isRoot {
		reloadCmd = exec.Command("systemctl", "daemon-reload")
	} else {
		reloadCmd = exec.Command("systemctl", "--user", "daemon-reload")
	}
	reloadCmd.Run()

	fmt.Println("Systemd service uninstalled")
	return nil
}
