package session

// DetectSupport reports whether factory can produce engine handles. It is
// evaluated once per controller and never returns an error.
func DetectSupport(factory RecognizerFactory) (supported bool) {
	if factory == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			supported = false
		}
	}()
	return factory.Supported()
}
