package summarize

const hunkPromptTemplate = `You are summarizing one hunk of a code change.

Commit message: {{.CommitMessage}}
File: {{.FilePath}}
Hunk header: {{.Header}}

Changed content:
{{.Text}}

In 1-3 sentences, explain WHY this hunk changed (intent, not mechanics).
Then on a final line write "Labels:" followed by up to three of:
fix, refactor, feature, cleanup, test, docs, security, perf.`

const commitPromptTemplate = `You are writing a commit-level change summary.

Commit message: {{.CommitMessage}}

Per-hunk summaries:
{{.Text}}

Produce at most 6 short bullet points covering the intent of the change.
One bullet per line, each starting with "- ".`
