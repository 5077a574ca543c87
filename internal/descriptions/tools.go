package descriptions

// Tool descriptions with practical examples and use cases

const (
	BatchFillDescription = `Fill a PDF form template once per input row and merge every filled copy into one PDF.

**When to use:** Producing control copies from a client list: one flattened form per row, in row order, in a single file.

**Input:** A delimited file with a header row. Recognized columns are Client, ProSystem's #, Tax Year,
Return Type and File Directory. Every column whose header contains "States" feeds the States field:
non-empty values are joined with ", " in column order. Other columns are ignored.

**Examples:**
• Control copies for a season: "Fill control-copy.pdf from clients-2024.csv"
• Tab-separated export: "Fill control-copy.pdf from export.tsv with delimiter '\t'"
• Custom output: "Fill form.pdf from rows.csv into out/Season.pdf"

**Behavior:**
1. The template is loaded once and reused for every row
2. Each copy is filled, flattened and appended to the output in input order
3. The first failing row aborts the batch; no partial output is written
4. Fields the template lacks are reported as warnings and left unfilled

**Best practices:** Run template_fields first and check its missing list.`

	TemplateFieldsDescription = `List the fillable fields of a PDF form template and compare them with the fields a batch fills.

**When to use:** Before batch_fill, to confirm a template carries the expected field names.

**Examples:**
• Template check: "Which fields does control-copy.pdf have?"
• Troubleshooting: "Why is Tax Year blank in the merged output?"

**Response:** Page count, every terminal field name, the expected fields and the expected fields the template lacks.
Field names are matched exactly and are case-sensitive.`

	PDFValidateFileDescription = `Verify that a file is a readable PDF before using it as a template.

**When to use:** When a template comes from an unknown source or a batch fails while loading the template.

**Examples:**
• Upload verification: "Check new-template.pdf is a valid PDF"

**Best practices:** A valid PDF may still lack an interactive form; use template_fields to check the fields.`

	BatchServerInfoDescription = `Get server information, column mappings and the templates and inputs in the working directory.

**When to use:** First call in a session, to discover files and learn how input columns reach template fields.

**Response:** Server version, working directory, default output path, size limit, column mappings,
available tools, directory contents and usage guidance.`
)
