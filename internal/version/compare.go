package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
)

// DevelopmentVersion marks a build without a release version.
const DevelopmentVersion = "main"

// CheckVersionCompatibility checks if the engine can run a configuration written for configVersion.
// A leading "v" is ignored on both sides. Major and minor must match, patch may differ,
// and a development build on either side skips the check.
//
//	engine 1.2.1, config 1.2.0 -> ok
//	engine 1.3.0, config 1.2.0 -> ErrCodeVersionMismatch
//	engine main,  config 1.3.0 -> ok
func CheckVersionCompatibility(engineVersion, configVersion string) error {
	engineVersion = strings.TrimPrefix(engineVersion, "v")
	configVersion = strings.TrimPrefix(configVersion, "v")

	if engineVersion == DevelopmentVersion || configVersion == DevelopmentVersion {
		return nil
	}

	engineSemver, err := parse("engine", engineVersion)
	if err != nil {
		return err
	}

	configSemver, err := parse("config", configVersion)
	if err != nil {
		return err
	}

	if engineSemver.Major() != configSemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "major version mismatch: engine is %d.x.x but config requires %d.x.x",
			engineSemver.Major(), configSemver.Major())
	}

	if engineSemver.Minor() != configSemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "minor version mismatch: engine is %d.%d.x but config requires %d.%d.x",
			engineSemver.Major(), engineSemver.Minor(),
			configSemver.Major(), configSemver.Minor())
	}

	return nil
}

func parse(owner string, value string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(value)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid %s version '%s'", owner, value)
	}

	return parsed, nil
}
