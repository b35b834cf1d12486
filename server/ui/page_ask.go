package ui

import (
	"fmt"
	"time"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/nnnkkk7/agriqa/pkg/assistant"
	"github.com/nnnkkk7/agriqa/pkg/query"
)

const maxDisplayRows = 200

var exampleQuestions = []string{
	"Compare the average annual rainfall in Punjab and Kerala for the last 5 years and list the top 3 cereals",
	"Identify the district with the highest and lowest production of Rice in Punjab and Kerala",
	"Analyze the production trend of Wheat in Punjab over the last 8 years and its correlation with rainfall",
	"Give three policy arguments for promoting Wheat over Rice in Punjab",
}

type askState struct {
	Question string
	Offline  bool
	Error    string
	Answer   *assistant.Answer
}

func askPage(state askState) gomponents.Node {
	var body []gomponents.Node
	body = append(body, askForm(state))

	switch {
	case state.Error != "":
		body = append(body, html.Div(
			html.Class("card error"),
			html.H2(gomponents.Text("Could not answer")),
			html.Pre(gomponents.Text(state.Error)),
		))
	case state.Answer != nil:
		body = append(body, answerSection(state.Answer)...)
	default:
		examples := make([]gomponents.Node, 0, len(exampleQuestions))
		for _, q := range exampleQuestions {
			examples = append(examples, html.Li(gomponents.Text(q)))
		}
		body = append(body, html.Div(
			html.Class("card"),
			html.H2(gomponents.Text("Try asking")),
			html.Ul(gomponents.Group(examples)),
		))
	}

	return html.Doctype(html.HTML(
		html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(gomponents.Text("Agri-climate Q&A")),
			html.Link(html.Rel("icon"), html.Href("data:,")),
			gomponents.El("style", gomponents.Raw(stylesheet)),
		),
		html.Body(
			html.Main(
				html.H1(gomponents.Text("Agri-climate Q&A")),
				html.P(html.Class("muted"), gomponents.Text("Answers are computed from the rainfall and crop production views; every number is cited.")),
				gomponents.Group(body),
			),
		),
	))
}

func askForm(state askState) gomponents.Node {
	offline := []gomponents.Node{html.Type("checkbox"), html.Name("offline"), html.ID("offline"), html.Value("1")}
	if state.Offline {
		offline = append(offline, html.Checked())
	}

	return html.Div(
		html.Class("card"),
		html.Form(
			html.Method("post"),
			html.Action("/ask"),
			html.Label(html.For("question"), gomponents.Text("Question")),
			html.Textarea(html.Name("question"), html.ID("question"), html.Required(), html.Rows("3"), gomponents.Text(state.Question)),
			html.Div(
				html.Class("button-row"),
				html.Label(html.Input(offline...), gomponents.Text(" Offline (no LLM calls)")),
				html.Button(html.Type("submit"), gomponents.Text("Ask")),
			),
		),
	)
}

func answerSection(ans *assistant.Answer) []gomponents.Node {
	inv := ans.Invocation

	meta := fmt.Sprintf("Template %s (mapped by %s), %d unit(s), %d failed, %s",
		inv.TemplateID, ans.Mapping.Source, len(inv.Results), inv.Failed(), inv.Duration.Round(time.Millisecond))
	if ans.Reply.Fallback {
		meta += ", deterministic summary"
	} else if ans.Reply.Model != "" {
		meta += ", answered by " + ans.Reply.Model
	}

	citations := make([]gomponents.Node, 0, len(ans.Citations))
	for _, c := range ans.Citations {
		citations = append(citations, html.Li(html.Code(gomponents.Text(c.Source)), gomponents.Text(" from "+c.File)))
	}
	if len(citations) == 0 {
		citations = append(citations, html.Li(gomponents.Text("(none detected)")))
	}

	nodes := []gomponents.Node{
		html.Div(
			html.Class("card"),
			html.H2(gomponents.Text("Answer")),
			html.P(html.Class("answer"), gomponents.Text(ans.Reply.Text)),
			html.P(html.Class("muted"), gomponents.Text(meta)),
			html.H3(gomponents.Text("Sources")),
			html.Ul(gomponents.Group(citations)),
			html.Details(
				html.Summary(gomponents.Text("Executed SQL")),
				html.Pre(gomponents.Text(inv.RenderedSQL)),
			),
		),
	}

	for _, r := range inv.Results {
		nodes = append(nodes, resultCard(r))
	}
	return nodes
}

func resultCard(r query.StatementResult) gomponents.Node {
	if !r.OK() {
		return html.Div(
			html.Class("card error"),
			html.H3(gomponents.Text(r.Label)),
			html.Pre(gomponents.Text(r.Err.Error())),
		)
	}

	headerCols := make([]gomponents.Node, 0, len(r.Table.Columns))
	for _, c := range r.Table.Columns {
		headerCols = append(headerCols, html.Th(gomponents.Text(c)))
	}

	displayRows := r.Table.StringRows()
	meta := fmt.Sprintf("%d row(s)", len(displayRows))
	if len(displayRows) > maxDisplayRows {
		displayRows = displayRows[:maxDisplayRows]
		meta = fmt.Sprintf("%d row(s), showing first %d", r.Table.RowCount(), maxDisplayRows)
	}

	rows := make([]gomponents.Node, 0, len(displayRows))
	for _, row := range displayRows {
		cells := make([]gomponents.Node, 0, len(row))
		for _, cell := range row {
			cells = append(cells, html.Td(gomponents.Text(cell)))
		}
		rows = append(rows, html.Tr(gomponents.Group(cells)))
	}

	return html.Div(
		html.Class("card table-wrap"),
		html.H3(gomponents.Text(r.Label)),
		html.P(html.Class("muted"), gomponents.Text(meta)),
		html.Table(
			html.THead(html.Tr(gomponents.Group(headerCols))),
			html.TBody(gomponents.Group(rows)),
		),
	)
}

const stylesheet = `
body { font-family: system-ui, sans-serif; margin: 0; background: #f6f7f4; color: #1f2a1c; }
main { max-width: 960px; margin: 0 auto; padding: 24px; }
.card { background: #fff; border: 1px solid #dde3d6; border-radius: 8px; padding: 16px; margin: 16px 0; }
.card.error { border-color: #d9534f; }
.muted { color: #68735f; font-size: 0.9em; }
.answer { white-space: pre-wrap; line-height: 1.5; }
textarea { width: 100%; box-sizing: border-box; font: inherit; padding: 8px; }
.button-row { display: flex; justify-content: space-between; align-items: center; margin-top: 8px; }
button { background: #3b6e22; color: #fff; border: 0; border-radius: 6px; padding: 8px 20px; cursor: pointer; }
.table-wrap { overflow-x: auto; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 4px 8px; border-bottom: 1px solid #eceee8; }
pre { white-space: pre-wrap; background: #f3f4f0; padding: 8px; }
`
