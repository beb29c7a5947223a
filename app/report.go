package app

import (
	"bytes"
	"fmt"

	"adamstat/domain/run"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ReportMarkdown summarizes a run as markdown: parameters, then the record table
func ReportMarkdown(rn *run.Run) []byte {
	var b bytes.Buffer
	res := rn.Result

	fmt.Fprintf(&b, "# One-sample t-test: %s\n\n", rn.Column)
	fmt.Fprintf(&b, "- Run: `%s`\n", rn.ID)
	fmt.Fprintf(&b, "- Created: %s\n", rn.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Subject: %s\n", rn.SubjectID)
	if rn.Source != "" {
		fmt.Fprintf(&b, "- Source: %s (%d missing values dropped)\n", rn.Source, rn.Dropped)
	}
	fmt.Fprintf(&b, "- H0: mean = %g\n", res.Params.ReferenceMean)
	fmt.Fprintf(&b, "- Alternative: %s, alpha = %g\n", res.Params.Sidedness, res.Params.Alpha)
	fmt.Fprintf(&b, "- n = %d\n\n", res.N)

	b.WriteString("| ASEQ | PARAMCD | PARAM | AVALC |\n")
	b.WriteString("|---:|---|---|---:|\n")
	for _, r := range rn.Records {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", r.ASEQ, r.PARAMCD, r.PARAM, r.AVALC)
	}

	if res.Params.Sidedness.IsOneSided() {
		b.WriteString("\n> One-sided p-values are half the two-sided value regardless of the direction of t.\n")
	}
	return b.Bytes()
}

// RenderReport renders the run report as a standalone HTML page
func RenderReport(rn *run.Run) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "t-test " + rn.Column,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML(ReportMarkdown(rn), p, renderer)
}
