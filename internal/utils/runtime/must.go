package runtime

// Must panics if err is non-nil. Used for setup calls that can only fail on programmer error.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}
