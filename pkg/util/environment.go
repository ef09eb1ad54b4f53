package util

import (
	"os"
	"strings"
)

const EnvironmentPrefix = "TELEMETRY_"

// GetEnvironmentVariables returns the process environment as a map
func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)
		if len(pair) != 2 {
			continue
		}

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// GetPrefixedEnvironmentVariables returns only the TELEMETRY_ variables with the prefix removed
func GetPrefixedEnvironmentVariables() map[string]string {
	prefixed := map[string]string{}

	for key, value := range GetEnvironmentVariables() {
		if name, found := strings.CutPrefix(key, EnvironmentPrefix); found {
			prefixed[name] = value
		}
	}

	return prefixed
}
