// Command ply prints and converts property lists.
//
//	ply [options] [FILE]
//
// With no FILE, or when FILE is -, ply reads standard input. Input may be
// an XML or binary property list, optionally gzip-compressed, or JSON with
// comments when --from-json is given. Without -c the value is printed in a
// compact debugging notation.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fxamacker/cbor/v2"
	flags "github.com/jessevdk/go-flags"
	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v2"

	"github.com/zdypro888/plist"
)

type options struct {
	Convert  string `short:"c" long:"convert" description:"convert the property list to a new format" choice:"xml" choice:"binary" choice:"json" choice:"yaml" choice:"cbor" value-name:"FORMAT"`
	Output   string `short:"o" long:"out" description:"output filename" value-name:"FILE"`
	Indent   bool   `short:"I" long:"indent" description:"indent indentable output formats (xml, json)"`
	FromJSON bool   `long:"from-json" description:"read JSON (comments allowed) instead of a property list"`
	Keyed    bool   `short:"k" long:"keyed" description:"resolve an NSKeyedArchiver object graph before printing"`
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("ply: ")
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			fmt.Println(ferr.Message)
			return
		}
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[options] [FILE]"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return err
	}
	if len(rest) > 1 {
		return fmt.Errorf("too many arguments: %q", rest)
	}

	in := stdin
	if len(rest) == 1 && rest[0] != "-" {
		f, err := os.Open(rest[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := readInput(in)
	if err != nil {
		return err
	}

	var pval plist.Value
	switch {
	case opts.FromJSON && opts.Keyed:
		return fmt.Errorf("--keyed needs a property list, not JSON")
	case opts.FromJSON:
		pval, err = fromJSON(data)
	case opts.Keyed:
		archiver := &plist.Archiver{}
		if err = archiver.ReadFromData(data); err == nil {
			pval, err = archiver.Unarchive()
		}
	default:
		pval, err = plist.NewDecoder(bytes.NewReader(data)).DecodeValue()
	}
	if err != nil {
		return err
	}

	out := stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return write(out, pval, &opts)
}

// readInput reads all of r, inflating it first if it is gzip data.
func readInput(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte{0x1f, 0x8b}) {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func fromJSON(data []byte) (plist.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return plist.ValueOf(v)
}

func write(w io.Writer, pval plist.Value, opts *options) error {
	switch opts.Convert {
	case "":
		_, err := fmt.Fprintln(w, plist.Describe(pval))
		return err
	case "xml":
		enc := plist.NewEncoderForFormat(w, plist.XMLFormat)
		if opts.Indent {
			enc.Indent("\t")
		}
		return enc.Encode(pval)
	case "binary":
		return plist.NewEncoderForFormat(w, plist.BinaryFormat).Encode(pval)
	case "json":
		var out []byte
		var err error
		if opts.Indent {
			out, err = json.MarshalIndent(plist.ToGo(pval), "", "\t")
		} else {
			out, err = json.Marshal(plist.ToGo(pval))
		}
		if err != nil {
			return err
		}
		_, err = w.Write(append(out, '\n'))
		return err
	case "yaml":
		out, err := yaml.Marshal(plist.ToGo(pval))
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "cbor":
		em, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return err
		}
		out, err := em.Marshal(plist.ToGo(pval))
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	return fmt.Errorf("unknown output format %q", opts.Convert)
}
