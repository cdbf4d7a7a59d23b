//go:build !govips || !cgo

package imaging

// Startup is a no-op without the govips backend.
func Startup() error {
	return nil
}

func Shutdown() {}
