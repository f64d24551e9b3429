package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	jinja "github.com/jinja-go/jinja"
	"gopkg.in/yaml.v3"
)

func main() {
	contextFile := flag.String("context", "", "JSON or YAML file with context data")
	native := flag.Bool("native", false, "use native-types rendering mode")
	autoescape := flag.Bool("autoescape", false, "enable autoescaping")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: jinjafmt [flags] <template-file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	vars := map[string]interface{}{}
	if *contextFile != "" {
		data, err := os.ReadFile(*contextFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		if err := unmarshalContext(*contextFile, data, &vars); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}

	env := jinja.NewEnvironment(jinja.WithAutoescape(func(string) bool { return *autoescape }))
	tmpl, err := env.FromString(string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	if *native {
		out, err := tmpl.RenderNative(vars)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		enc, _ := json.Marshal(out)
		fmt.Println(string(enc))
		return
	}

	out, err := tmpl.Render(vars)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func unmarshalContext(name string, data []byte, vars *map[string]interface{}) error {
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return json.Unmarshal(data, vars)
	}
	return yaml.Unmarshal(data, vars)
}
