package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "dupes" {
			command = os.Args[i]
			commandIndex = i
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// GetDefaultCachePath returns the default location for the fingerprint cache.
func GetDefaultCachePath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		// Fallback to current directory if no user cache dir is available
		return "fingerprints.db"
	}
	return filepath.Join(base, "imagedups", "fingerprints.db")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s dupes --folder=PATH [--cache=PATH] [--no-cache] [--algo=NAME] [--distance=N] [--include-same-dir] [--quiet] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --folder           : Path to folder containing images to check for duplicates\n")
	fmt.Printf("  --cache            : Path to fingerprint cache file (default: %s)\n", GetDefaultCachePath())
	fmt.Printf("  --no-cache         : Disable the fingerprint cache for this run\n")
	fmt.Printf("  --algo             : Hash algorithm: ahash, dhash or phash (default: dhash)\n")
	fmt.Printf("  --distance         : Maximum bit distance for near duplicates (default: 5)\n")
	fmt.Printf("  --include-same-dir : Also cluster images that share a parent directory\n")
	fmt.Printf("  --quiet            : Suppress per-item warnings in the output\n")
	fmt.Printf("  --debug            : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile          : Specify custom log file path (default: imagedups.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s dupes --folder=/path/to/images --algo=phash --distance=8\n", os.Args[0])
	fmt.Printf("  %s dupes --folder=/path/to/images --no-cache --quiet\n", os.Args[0])
}

// ParseDistance parses and validates the maximum distance value from string
func ParseDistance(distanceStr string) (int, error) {
	distance, err := strconv.Atoi(distanceStr)
	if err != nil || distance < 0 {
		return 0, fmt.Errorf("invalid distance value %q, want a non-negative integer", distanceStr)
	}
	return distance, nil
}
