package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Discovery
	LabelListDocumentsDescription = `List the label PDFs stored under a bucket prefix.

**When to use:** Before extracting, to see which documents a batch would process.

**Why it's useful:** Shows exactly the keys the batch run will visit, in the order it visits them. Only keys ending in .pdf are returned.

**Examples:**
• Preview a batch: "List the PDFs under pdf/ in the configured bucket"
• Check an upload: "List documents under pdf/2024/ in bucket label-archive"

**Common workflows:**
1. Batch preview: label_list_documents → label_extract_batch
2. Spot check: label_list_documents → label_extract_document on one key

**Best practices:** Leave bucket and prefix empty to use the server configuration.`

	// Extraction
	LabelExtractDocumentDescription = `Analyze one stored label PDF and return its extracted fields.

**When to use:** Need the field values of a single label without running a whole batch.

**Why it's useful:** Runs the same analysis and rule table as the batch, so the result matches the row the batch would write.

**Examples:**
• Check one label: "Extract fields from pdf/aspirin-label.pdf"
• Debug a rule: "Extract pdf/new-format.pdf and look at the Study column"

**Common workflows:**
1. Rule tuning: label_extract_document → adjust the rule file → extract again
2. Triage: label_list_documents → label_extract_document on suspicious keys

**Best practices:** Fields with no match carry the default value (N/A, or N for the Black Box Warning flag). Multi-valued fields are joined with "; ".`

	LabelExtractResponseDescription = `Extract fields from a saved document-analysis response (JSON with a top-level Blocks array).

**When to use:** The analysis has already been paid for and saved, e.g. by textract-dump.

**Why it's useful:** Re-runs extraction offline, with no calls to storage or the analysis service.

**Examples:**
• Offline rerun: "Extract fields from analysis/aspirin.json"

**Common workflows:**
1. textract-dump → label_extract_response → tune rules → label_extract_response

**Best practices:** Malformed blocks are tolerated; a missing Page counts as page 1.`

	LabelExtractBatchDescription = `Run the full batch: list, analyze, extract and write every label PDF to the configured output file.

**When to use:** Produce the spreadsheet for the whole configured prefix.

**Why it's useful:** One call does what the label-extract command does, and reports processed and failed counts.

**Examples:**
• Nightly run: "Run the label extraction batch"

**Common workflows:**
1. label_list_documents → label_extract_batch → open the output file

**Best practices:** A document that fails analysis is skipped and counted; the batch continues. An empty prefix is an error and writes no file.`

	// PDF files
	PDFCheckDescription = `Check a local PDF file for validity, encryption and page count.

**When to use:** Before uploading a label or when analysis rejects a document.

**Why it's useful:** Encrypted or damaged PDFs are the usual cause of analysis failures; this tells you which one you have.

**Examples:**
• Pre-upload check: "Check /data/labels/aspirin.pdf"

**Common workflows:**
1. pdf_check → if encrypted, sanitize with pdfcheck → upload

**Best practices:** Encryption without a known password is reported, not treated as an error.`

	LabelServerInfoDescription = `Show the server configuration, the extracted field schema and the available tools.

**When to use:** First call in a session, to learn the bucket, prefix and columns in use.

**Best practices:** The schema lists the columns in output order; the first column is the document key.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"label_list_documents":   LabelListDocumentsDescription,
	"label_extract_document": LabelExtractDocumentDescription,
	"label_extract_response": LabelExtractResponseDescription,
	"label_extract_batch":    LabelExtractBatchDescription,
	"pdf_check":              PDFCheckDescription,
	"label_server_info":      LabelServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns all tool names in alphabetical order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
