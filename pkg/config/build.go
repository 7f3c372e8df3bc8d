package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	projectVersionFile   = "PROJECT_VERSION"
	projectBuildDateFile = "PROJECT_BUILD_DATE"
	projectCommitFile    = "PROJECT_COMMIT_HASH"
)

type BuildConfig struct {
	GitTag    string
	GitHash   string
	BuildDate uint64
}

// ReadBuildVersion reads the build info files written by the release
// pipeline from the working directory.
func ReadBuildVersion() (*BuildConfig, error) {
	return readBuildVersion(".")
}

func readBuildVersion(dir string) (*BuildConfig, error) {
	read := func(name string) (string, error) {
		b, err := os.ReadFile(dir + string(os.PathSeparator) + name)
		if err != nil {
			return "", errors.Wrapf(err, "reading %s", name)
		}

		return strings.TrimSpace(string(b)), nil
	}

	gitTag, err := read(projectVersionFile)
	if err != nil {
		return nil, err
	}

	gitHash, err := read(projectCommitFile)
	if err != nil {
		return nil, err
	}

	buildDateStr, err := read(projectBuildDateFile)
	if err != nil {
		return nil, err
	}

	buildDate, err := time.Parse(time.RFC3339, buildDateStr)
	if err != nil {
		return nil, errors.Wrap(err, "parsing build date")
	}

	return &BuildConfig{
		GitTag:    gitTag,
		GitHash:   gitHash,
		BuildDate: uint64(buildDate.Unix()),
	}, nil
}
