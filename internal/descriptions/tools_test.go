package descriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolDescriptions(t *testing.T) {
	names := GetAllToolNames()
	assert.Equal(t, []string{
		"label_extract_batch",
		"label_extract_document",
		"label_extract_response",
		"label_list_documents",
		"label_server_info",
		"pdf_check",
	}, names)

	for _, name := range names {
		assert.NotEmpty(t, GetToolDescription(name), name)
		assert.Contains(t, GetToolDescription(name), "**", name)
	}
	assert.Equal(t, "Tool description not available", GetToolDescription("pdf_read_file"))
}
