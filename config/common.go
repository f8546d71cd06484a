package config

const (
	EnvPrefix = "GRIDNET_"
)
