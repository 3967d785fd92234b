package config

import (
	"bufio"
	"errors"
	"os"
	"strconv"
	"strings"
)

// errNoEnvArg signals that neither NAME nor NAME_FILE was set.
var errNoEnvArg = errors.New("no env arg")

// loadEnvFile reads the first line of a secret file, mirroring how
// container orchestrators mount single-value secrets.
func loadEnvFile(path string) (string, error) {
	fin, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fin.Close()
	s := bufio.NewScanner(fin)
	s.Scan()
	if err := s.Err(); err != nil {
		return "", err
	}
	v := s.Text()
	if v == "" {
		return "", errors.New("environment secret file is empty: " + path)
	}
	return v, nil
}

// loadEnv looks up name directly, then falls back to name_FILE pointing at a
// file whose first line holds the value.
func loadEnv(name string) (string, error) {
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	if fp, ok := os.LookupEnv(name + "_FILE"); ok {
		return loadEnvFile(fp)
	}
	return "", errNoEnvArg
}

func envString(name, def string) (string, error) {
	v, err := loadEnv(name)
	if err != nil {
		if errors.Is(err, errNoEnvArg) {
			return def, nil
		}
		return "", err
	}
	return v, nil
}

func envStringRequired(name string) (string, error) {
	v, err := loadEnv(name)
	if err != nil {
		if errors.Is(err, errNoEnvArg) {
			return "", ErrMissingRequired(name)
		}
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", ErrMissingRequired(name)
	}
	return v, nil
}

func envBool(name string, def bool) (bool, error) {
	v, err := loadEnv(name)
	if err != nil {
		if errors.Is(err, errNoEnvArg) {
			return def, nil
		}
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, InvalidValue(name, v)
	}
	return b, nil
}

func envInt(name string, def int) (int, error) {
	v, err := loadEnv(name)
	if err != nil {
		if errors.Is(err, errNoEnvArg) {
			return def, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, InvalidValue(name, v)
	}
	return n, nil
}

func envFloat(name string, def float64) (float64, error) {
	v, err := loadEnv(name)
	if err != nil {
		if errors.Is(err, errNoEnvArg) {
			return def, nil
		}
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, InvalidValue(name, v)
	}
	return f, nil
}
