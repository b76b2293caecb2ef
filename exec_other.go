//go:build !unix

package sandboxexec

func checkCommand(command []string) error {
	return nil
}

func execCommand(command []string, env []string) error {
	return ErrUnsupportedPlatform
}
