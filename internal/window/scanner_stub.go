//go:build !windows
// +build !windows

package window

// platformListWindows has no implementation off Windows; scans find
// nothing and every rule reports its target unavailable.
func platformListWindows() ([]Info, error) {
	return nil, nil
}
