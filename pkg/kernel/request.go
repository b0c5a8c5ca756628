package kernel

import (
	"strings"

	"github.com/aretw0/mnb/pkg/domain"
)

// BuildRequest constructs the request for running the cell at index.
// AllCellContent holds every Code cell from the start of the notebook up to and
// including the first Code cell at or after index, each followed by a newline.
func BuildRequest(nb domain.Notebook, index int) (domain.ExecutionRequest, error) {
	target, err := nb.Cell(index)
	if err != nil {
		return domain.ExecutionRequest{}, err
	}

	var all strings.Builder
	for i, c := range nb.Cells {
		if !c.IsCode() {
			continue
		}
		all.WriteString(c.Text)
		all.WriteString("\n")
		if i >= index {
			break
		}
	}

	return domain.ExecutionRequest{
		Code:           target.Text,
		AllCellContent: all.String(),
	}, nil
}

// fence wraps transformed code into a markdown code block.
func fence(code string) string {
	return "```\n" + code + "\n```"
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
