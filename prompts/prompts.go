package prompts

import (
	"fmt"

	_ "embed"
)

// Embedded prompt files

//go:embed analyst_system.txt
var analystSystem string

//go:embed dataset_context.txt
var datasetContext string

func AnalystSystem() string { return analystSystem }

// DatasetContext renders the dataset-selection system message around the
// serialized active-dataset record.
func DatasetContext(descriptor string) string {
	return fmt.Sprintf(datasetContext, descriptor)
}
