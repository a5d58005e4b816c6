package oracle

import (
	"os/exec"
	"runtime"
)

func openBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	// #nosec G204 -- target is the locally built authorization URL.
	return cmd.Start()
}
