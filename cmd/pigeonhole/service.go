package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// serviceCommand handles 'pigeonhole service <install|uninstall|status>'.
func serviceCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pigeonhole service <install|uninstall|status>")
		return 1
	}

	var err error
	switch args[0] {
	case "install":
		switch runtime.GOOS {
		case "linux":
			err = installSystemd()
		case "darwin":
			err = installLaunchd()
		default:
			err = fmt.Errorf("service install not supported on %s", runtime.GOOS)
		}
	case "uninstall":
		switch runtime.GOOS {
		case "linux":
			err = uninstallSystemd()
		case "darwin":
			err = uninstallLaunchd()
		default:
			err = fmt.Errorf("service uninstall not supported on %s", runtime.GOOS)
		}
	case "status":
		err = serviceStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown service subcommand: %s\n", args[0])
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func serviceStatus() error {
	switch runtime.GOOS {
	case "linux":
		var cmd *exec.Cmd
		if os.Geteuid() == 0 {
			cmd = exec.Command("systemctl", "status", "pigeonhole", "--no-pager")
		} else {
			cmd = exec.Command("systemctl", "--user", "status", "pigeonhole", "--no-pager")
		}
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	case "darwin":
		cmd := exec.Command("launchctl", "list", "com.relayworks.pigeonhole")
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
	return fmt.Errorf("service status not supported on %s", runtime.GOOS)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
