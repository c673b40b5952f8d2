package notifications

var commonTemplates = map[string]string{
	`default`: `
{{- with .Event -}}
  {{- if .Updated -}}
    Updated {{.Container}} to {{.Image}}
  {{- else if .Err -}}
    Failed to update {{.Container}} ({{.Image}}): {{.Err}}
  {{- else -}}
    {{.Container}} ({{.Image}}) was not updated
  {{- end -}}
{{- end -}}`,

	`porcelain.v1`: `
{{- with .Event -}}
  {{- .Container}} ({{.Image}}): {{if .Updated}}Updated{{else if .Err}}Failed{{else}}Skipped{{end}}
  {{- with .Err}} Error: {{.}}{{end}}
{{- end -}}`,

	`json.v1`: `{{ . | ToJSON }}`,
}
