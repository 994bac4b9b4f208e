package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/cienicera/Koji"
	"github.com/cienicera/Koji/cairo"
	"github.com/cienicera/Koji/config"
	"github.com/cienicera/Koji/convert"
	"github.com/cienicera/Koji/version"
)

func main() {
	conversionFlag := flag.String("conversion", "", "Conversion to run: midi-to-json, midi-to-cairo, cairo-to-midi, cairo-to-json, json-to-cairo or json-to-midi.")
	formatFlag := flag.String("format", "", "Format to convert to: midi, cairo or json. The source format is told from the extension of the input. Ignored when -conversion is given.")
	configPath := flag.String("config", "", "Read settings from this YAML file instead of koji/config.yml in the user config directory.")
	orderFlag := flag.String("order", "", "How times become tick deltas: append uses each stored time as the delta, sorted sorts the events by time first. Defaults to sorted for Cairo sources and append otherwise.")
	bpm := flag.Float64("bpm", 0, "Tempo assumed when Cairo timestamps are turned into ticks. Default 120.")
	ppq := flag.Uint("ppq", 0, "Ticks per beat of MIDI files made from Cairo. Default 480.")
	scan := flag.String("scan", "", "Order of the events parsed from Cairo: document or variant.")
	tmplDir := flag.String("t", "", "Write Cairo with the templates in this directory instead of the built-in templates.")
	safe := flag.Bool("n", false, "Never overwrite files; if a file already exists and would be overwritten, give an error.")
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	quiet := flag.Bool("q", false, "Print only errors.")
	debug := flag.Bool("debug", false, "Log what the converter does to standard error.")
	jobs := flag.Int("j", 0, "Files converted at once when the input is a directory. Default is one per CPU.")
	versionFlag := flag.Bool("version", false, "Print version.")
	help := flag.Bool("h", false, "Show help.")
	flag.Usage = printUsage
	args := parseArgs(flag.CommandLine, os.Args[1:])
	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}
	if *help {
		flag.Usage()
		os.Exit(0)
	}
	if len(args) != 2 && !(len(args) == 1 && *stdout) {
		flag.Usage()
		os.Exit(2)
	}
	input := args[0]
	var output string
	if len(args) > 1 {
		output = args[1]
	}
	conv, err := conversion(*conversionFlag, *formatFlag, input, output)
	if err != nil {
		usageError(err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "order":
			order, err := koji.ParseOrder(*orderFlag)
			if err != nil {
				flagErr = err
			}
			setOrder(&cfg, conv.From, order)
		case "bpm":
			cfg.BPM = *bpm
		case "ppq":
			cfg.PPQ = uint16(*ppq)
			if *ppq > 0x7FFF {
				cfg.PPQ = 0
			}
		case "scan":
			if err := cfg.ScanOrder.UnmarshalText([]byte(*scan)); err != nil {
				flagErr = err
			}
		case "n":
			cfg.NoOverwrite = *safe
		case "j":
			cfg.Jobs = *jobs
		}
	})
	if flagErr == nil {
		flagErr = cfg.Validate()
	}
	if flagErr != nil {
		usageError(flagErr)
	}
	converter := convert.New(cfg)
	if *debug {
		converter.Logger = log.New(os.Stderr, "koji: ", log.LstdFlags)
	}
	if *tmplDir != "" {
		if converter.Serializer, err = cairo.NewFromTemplates(*tmplDir); err != nil {
			printError(err)
			os.Exit(1)
		}
	}
	p := printer{quiet: *quiet}
	if info, err := os.Stat(input); err == nil && info.IsDir() {
		os.Exit(convertDir(converter, conv, input, output, &p))
	}
	if *stdout {
		src, err := os.ReadFile(input)
		if err != nil {
			p.failed(&koji.SourceReadError{Path: input, Err: err})
			os.Exit(1)
		}
		res, err := converter.Convert(src, conv)
		if err != nil {
			p.failed(fmt.Errorf("%v: %w", input, err))
			os.Exit(1)
		}
		p.warnings(input, res.Warnings)
		os.Stdout.Write(res.Output)
		os.Exit(0)
	}
	res, err := converter.ConvertFile(input, output, conv)
	if err != nil {
		p.warnings(input, res.Warnings)
		p.failed(err)
		os.Exit(1)
	}
	p.converted(conv, input, output, res)
	os.Exit(0)
}

func convertDir(converter *convert.Converter, conv convert.Conversion, inDir, outDir string, p *printer) int {
	if outDir == "" {
		usageError(fmt.Errorf("-s cannot be used with a directory"))
	}
	jobs, err := convert.Jobs(inDir, outDir, conv)
	if err != nil {
		p.failed(err)
		return 1
	}
	if len(jobs) == 0 {
		p.failed(fmt.Errorf("no %v files found in %v", conv.From.Title(), inDir))
		return 1
	}
	var mu sync.Mutex
	failed := converter.Batch(jobs, conv, converter.Config.Workers(), func(job convert.Job, res convert.Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			p.warnings(job.In, res.Warnings)
			p.failed(err)
			return
		}
		p.converted(conv, job.In, job.Out, res)
	})
	p.summary(len(jobs), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

// conversion picks the conversion from -conversion, then -format, then the
// extensions of the input and output paths.
func conversion(name, format, input, output string) (convert.Conversion, error) {
	switch {
	case name != "":
		return convert.ParseConversion(name)
	case format != "":
		return convert.Infer(input, format)
	}
	to, err := convert.FormatFromPath(output)
	if err != nil {
		return convert.Conversion{}, fmt.Errorf("give -conversion or -format: %w", err)
	}
	return convert.Infer(input, to.String())
}

func setOrder(cfg *config.Config, from convert.Format, order koji.Order) {
	switch from {
	case convert.MIDI:
		cfg.Order.MIDI = order
	case convert.Cairo:
		cfg.Order.Cairo = order
	case convert.JSON:
		cfg.Order.JSON = order
	}
}

// parseArgs lets flags come before, between and after the paths.
func parseArgs(fs *flag.FlagSet, args []string) []string {
	var positional []string
	for {
		fs.Parse(args)
		args = fs.Args()
		if len(args) == 0 {
			return positional
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func usageError(err error) {
	printError(err)
	fmt.Fprintf(os.Stderr, "Run %s -h for help.\n", os.Args[0])
	os.Exit(2)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Koji converter. Converts musical events between MIDI files, Cairo source and JSON.\nUsage: %s [flags] <input> <output>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "If <input> is a directory, every file of the source format in it is converted into the directory <output>; this needs -conversion.\n")
	flag.PrintDefaults()
}
