package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes {{.VAR_NAME}} references in raw YAML with environment
// values. Template syntax is used instead of $VAR so literal dollar signs in
// custom masking patterns and search queries survive untouched.
//
// Missing variables expand to the empty string. If the content fails to parse
// or execute as a template, the original bytes are returned and the YAML
// parser reports whatever is actually wrong.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("scout").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
