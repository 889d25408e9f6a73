package telemetry

import "codeberg.org/mutker/envsim/internal/errors"

const defaultNamespace = "envsim"

type Config struct {
	Enabled   bool
	Namespace string
}

func DefaultConfig() Config {
	return Config{
		Namespace: defaultNamespace,
	}
}

func (c Config) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return errors.New().New(ErrInvalidNamespace)
	}
	return nil
}
