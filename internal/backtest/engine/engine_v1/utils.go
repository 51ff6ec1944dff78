package engine

import (
	"path/filepath"
	"strings"
)

// getResultFolder returns <results>/<symbols>_<indicator>/<data file name>.
func getResultFolder(resultsFolder string, dataPath string, config BacktestEngineV1Config) string {
	name := strings.Join(config.Symbols, "-")
	if config.TechnicalIndicator != "" {
		name += "_" + config.TechnicalIndicator
	}

	dataFileName := strings.TrimSuffix(filepath.Base(dataPath), filepath.Ext(dataPath))

	return filepath.Join(resultsFolder, name, dataFileName)
}
