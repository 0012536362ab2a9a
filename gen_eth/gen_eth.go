/*
A CLI tool that reads Solidity contracts as *.sol files and outputs ABI
definitions as *.go code. Requires a Solidity compiler; see the documentation at
https://docs.soliditylang.org

Installation:

	go install github.com/purelabio/ethcore/gen_eth@latest

Example usage:

	gen_eth --help
	gen_eth --out gen_contracts.go sol/Test.sol:Test

To use with "go generate", include a "go:generate" comment in your source code:

	//go:generate gen_eth --out gen_contracts.go sol/Test.sol:Test

The generated file contains ABI definitions and contract code in various
formats: Abi data structure, JSON ABI string, contract code as bytes, contract
code as hex-encoded string. It also contains the selector of every function and
custom error and the topic of every event, as hex constants usable in log
filters and call data checks. The solc compiler is invoked with "--optimize".

The generated code doesn't contain any function calls and has no impact on the
program startup.
*/
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"go/format"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/Mitranim/repr"
	"github.com/pkg/errors"
	"github.com/purelabio/ethcore"
	"github.com/spf13/cobra"
)

type options struct {
	solc string
	out  string
	pkg  string
	self bool
}

/*
Template input for one contract. Constants are precomputed so that the template
only prints.
*/
type contractView struct {
	ethcore.ContractDef
	Consts []constView
}

type constView struct {
	Name  string
	Value string
	Doc   string
}

var codeTemplate = template.Must(template.New("").Parse(`
{{range .}}

var {{.ContractName}}Abi = {{.AbiRepr}}

const {{.ContractName}}AbiJson = ` + "`" + `{{.AbiJson}}` + "`" + `

var {{.ContractName}}Code = {{.CodeRepr}}

const {{.ContractName}}CodeHex = ` + "`" + `{{.Code.String}}` + "`" + `

{{if .Consts}}
const (
{{- range .Consts}}
	// {{.Doc}}
	{{.Name}} = "{{.Value}}"
{{- end}}
)
{{end}}

{{end}}
`))

type templateContract struct {
	contractView
	AbiRepr  string
	CodeRepr string
}

func main() {
	err := newCommand().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "gen_eth <flags> <specs ...>",
		Short: "Generate Go ABI definitions from Solidity contracts",
		Long: `Specs must have the form "filePath:contractName". Examples:

	gen_eth --out=gen_contracts.go sol/Test.sol:Test
	gen_eth --out=gen_contracts.go sol/file0.sol:A sol/file0.sol:B sol/file1.sol:C`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, specs []string) error {
			if solc := os.Getenv("SOLC"); solc != "" {
				opts.solc = solc
			}
			return run(opts, specs)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.solc, "solc", "solc", "Solidity compiler; can be overridden with the SOLC environment variable")
	flags.StringVar(&opts.out, "out", "", "output path for the generated Go file (required)")
	flags.StringVar(&opts.pkg, "pkg", "main", "package name for the generated code")
	flags.BoolVar(&opts.self, "self", false, "generate without imports or package prefixes")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func run(opts options, specs []string) error {
	// Extract file paths from <filePath>:<contractName> specs
	filePaths := []string{}
	for _, spec := range specs {
		pair := strings.Split(spec, ":")
		if len(pair) < 2 {
			return errors.Errorf(`contract specs must have the form "<filePath>:<contractName>", got %q`, spec)
		}
		filePaths = append(filePaths, pair[0])
	}

	solcArgs := append([]string{"--combined-json=abi,bin", "--optimize"}, filePaths...)
	cmd := exec.Command(opts.solc, solcArgs...)

	var buf bytes.Buffer
	cmd.Stdin = os.Stdin
	cmd.Stdout = &buf
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		return errors.Wrap(err, "failed to invoke solc")
	}

	defs, err := ethcore.ReadContractDefs(&buf)
	if err != nil {
		return errors.Wrap(err, "failed to decode ABI output from solc")
	}

	source, err := generate(opts, defs, specs)
	if err != nil {
		return err
	}

	const readWriteMode = os.FileMode(0600)
	err = os.WriteFile(opts.out, source, readWriteMode)
	if err != nil {
		return errors.Wrapf(err, "failed to write %q", opts.out)
	}
	return nil
}

// Renders the specified contracts as formatted Go source.
func generate(opts options, defs map[string]ethcore.ContractDef, specs []string) ([]byte, error) {
	var contracts []templateContract
	for _, spec := range specs {
		def, ok := defs[spec]
		if !ok {
			return nil, errors.Errorf("contract %q is missing from the solc output; found contracts: %q",
				spec, sortedDefNames(defs))
		}

		var err error
		def.AbiJson, err = prettyJson(def.AbiJson)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to format the ABI of %q", spec)
		}

		contracts = append(contracts, templateContract{
			contractView: contractView{ContractDef: def, Consts: abiConsts(def)},
			AbiRepr:      reprString(opts, def.Abi),
			CodeRepr:     reprString(opts, []byte(def.Code)),
		})
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "package %v\n", opts.pkg)
	if !opts.self {
		buf.WriteString(`import "github.com/purelabio/ethcore"` + "\n")
	}

	err := codeTemplate.Execute(&buf, contracts)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	source, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "generated code doesn't compile")
	}
	return source, nil
}

/*
Selector constants for functions and custom errors, topic constants for events.
Overloads get a numeric suffix in declaration order.
*/
func abiConsts(def ethcore.ContractDef) []constView {
	var out []constView
	seen := map[string]int{}

	add := func(kind string, name string, value []byte, signature string) {
		constName := def.ContractName + kind + exportedName(name)
		seen[constName]++
		if count := seen[constName]; count > 1 {
			constName += fmt.Sprint(count)
		}
		out = append(out, constView{
			Name:  constName,
			Value: "0x" + hex.EncodeToString(value),
			Doc:   signature,
		})
	}

	for _, method := range def.Abi {
		switch method := method.(type) {
		case ethcore.AbiFunction:
			add("Selector", method.Name, method.Selector[:], method.Signature())
		case ethcore.AbiError:
			add("ErrorSelector", method.Name, method.Selector[:], ethcore.AbiSignature(method.Name, method.Inputs))
		case ethcore.AbiEvent:
			if !method.Anonymous {
				add("Topic", method.Name, method.Topic[:], method.Signature())
			}
		}
	}
	return out
}

func exportedName(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func sortedDefNames(defs map[string]ethcore.ContractDef) []string {
	var names []string
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func prettyJson(input string) (string, error) {
	var val interface{}
	err := json.Unmarshal([]byte(input), &val)
	if err != nil {
		return "", errors.WithStack(err)
	}
	pretty, err := json.MarshalIndent(val, "", "\t")
	return string(pretty), errors.WithStack(err)
}

func reprString(opts options, val interface{}) string {
	if opts.self {
		return repr.StringC(val, repr.Config{
			PackageMap: map[string]string{
				"github.com/purelabio/ethcore": "",
			},
		})
	}
	return repr.String(val)
}
