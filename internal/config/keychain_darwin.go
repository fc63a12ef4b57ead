//go:build darwin

package config

import "os/exec"

func apiKeyHint() string {
	return " or macOS Keychain (service: ctxsync, account: platform_api_key)"
}

func keychainExec(service, account string) ([]byte, error) {
	return exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
}
