package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	jinja "github.com/jinja-go/jinja"
	"github.com/jinja-go/jinja/pkg/loader"
)

func main() {
	templateFile := flag.String("template", "", "template file to render")
	contextFile := flag.String("context", "", "JSON file with context data")
	dir := flag.String("dir", "", "template search directory (enables {% extends %}/{% include %})")
	flag.Parse()

	if *templateFile == "" {
		fmt.Fprintln(os.Stderr, "Jinja Go")
		out, err := jinja.TemplateString("Hello {{ name }}", map[string]interface{}{"name": "World"})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		fmt.Println(out)
		return
	}

	var env *jinja.Environment
	if *dir != "" {
		env = jinja.NewEnvironment(jinja.WithLoader(loader.NewFileSystemLoader(*dir)))
	} else {
		env = jinja.NewEnvironment()
	}

	vars := map[string]interface{}{}
	if *contextFile != "" {
		data, err := os.ReadFile(*contextFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &vars); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}

	var tmpl *jinja.Template
	var err error
	if *dir != "" {
		tmpl, err = env.GetTemplate(*templateFile)
	} else {
		data, rerr := os.ReadFile(*templateFile)
		if rerr != nil {
			fmt.Fprintln(os.Stderr, "Error:", rerr)
			os.Exit(1)
		}
		tmpl, err = env.FromString(string(data))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	out, err := tmpl.Render(vars)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	fmt.Println(out)
}
