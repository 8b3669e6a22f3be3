package model

type Flags struct {
	ConfigPath string
	ListenAddr string

	// Region overrides the configured AWS region when set.
	Region string
}
