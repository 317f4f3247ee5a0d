package link

import "go.bug.st/serial"

// OpenReal opens a real serial port at path and wraps it in a Link. This is
// the only place in the module that imports go.bug.st/serial directly for
// opening a device; everything above Link talks to the Porter interface.
func OpenReal(path string, opts Options) (*Link[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return New[serial.Port](port), nil
}
