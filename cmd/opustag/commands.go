package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/simonhull/opusmeta"
)

var errUsage = errors.New("invalid arguments")

func open(path string) (*opusmeta.File, error) {
	file, err := opusmeta.Open(path, opusmeta.WithLogger(log.StandardLogger()))
	if err != nil {
		return nil, err
	}
	for _, w := range file.Warnings {
		log.WithField("path", path).Warn(w.String())
	}
	return file, nil
}

func runShow(ctx context.Context, _ *Config, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	pictures := fs.Bool("pictures", false, "Decode every picture to check it")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	if fs.NArg() == 0 {
		return fmt.Errorf("%w: show needs at least one file", errUsage)
	}

	for i, path := range fs.Args() {
		if err := ctx.Err(); err != nil {
			return err
		}
		file, err := open(path)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Println()
		}
		show(file, *pictures)
	}
	return nil
}

func show(file *opusmeta.File, checkPictures bool) {
	fmt.Printf("%s\n", file.Path)
	fmt.Printf("  %s\n", file.Audio)
	fmt.Printf("  Serial:   %08x\n", file.Serial)
	fmt.Printf("  Vendor:   %s\n", file.Vendor)
	if d := file.Duration(); d > 0 {
		fmt.Printf("  Duration: %s\n", d)
	}
	if g, ok := file.TrackGain(); ok {
		fmt.Printf("  Track gain: %+.2f dB\n", g)
	}
	if g, ok := file.AlbumGain(); ok {
		fmt.Printf("  Album gain: %+.2f dB\n", g)
	}

	for _, c := range file.Comments {
		fmt.Printf("  %s=%s\n", c.Key, c.Value)
	}
	for i, ref := range file.Pictures {
		fmt.Printf("  Picture %d: %s\n", i+1, ref)
		if !checkPictures {
			continue
		}
		if _, format, err := ref.Image(); err != nil {
			fmt.Printf("    decode failed: %v\n", err)
		} else {
			fmt.Printf("    decodes as %s\n", format)
		}
	}
	for _, ch := range file.Chapters {
		fmt.Printf("  Chapter %d: %s [%s - %s]\n", ch.Index, ch.Title, ch.StartTime, ch.EndTime)
	}
}

func runSet(_ context.Context, cfg *Config, args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	vendor := fs.String("vendor", "", "Replace the vendor string")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	if fs.NArg() < 2 && *vendor == "" {
		return fmt.Errorf("%w: set needs a file and KEY=VALUE pairs", errUsage)
	}

	file, err := open(fs.Arg(0))
	if err != nil {
		return err
	}

	// Keys named more than once collect all their values.
	updates := make(map[string][]string)
	var order []string
	for _, kv := range fs.Args()[1:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: %q is not KEY=VALUE", errUsage, kv)
		}
		key = strings.ToUpper(key)
		if _, seen := updates[key]; !seen {
			order = append(order, key)
		}
		updates[key] = append(updates[key], value)
	}
	for _, key := range order {
		file.Comments.Set(key, updates[key]...)
	}
	if *vendor != "" {
		file.Vendor = *vendor
	}

	return file.Save(cfg.saveOptions()...)
}

func runRemove(_ context.Context, cfg *Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: rm needs a file and keys", errUsage)
	}

	file, err := open(args[0])
	if err != nil {
		return err
	}
	for _, key := range args[1:] {
		if !file.Comments.Has(key) {
			log.Warnf("%s: no %s comment", file.Path, strings.ToUpper(key))
		}
		file.Comments.Delete(key)
	}
	return file.Save(cfg.saveOptions()...)
}

func runPicture(_ context.Context, cfg *Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: picture needs add or extract", errUsage)
	}

	switch args[0] {
	case "add":
		return addPicture(cfg, args[1:])
	case "extract":
		return extractPictures(args[1:])
	default:
		return fmt.Errorf("%w: unknown picture command %q", errUsage, args[0])
	}
}

func addPicture(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("picture add", flag.ExitOnError)
	typ := fs.Uint("type", uint(opusmeta.PictureFrontCover), "Picture type (0-20)")
	desc := fs.String("desc", "", "Description")
	replace := fs.Bool("replace", false, "Remove existing pictures of the same type")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	if fs.NArg() != 2 {
		return fmt.Errorf("%w: picture add needs FILE IMAGE", errUsage)
	}
	if !opusmeta.PictureType(*typ).Valid() {
		return fmt.Errorf("%w: picture type %d out of range", errUsage, *typ)
	}

	file, err := open(fs.Arg(0))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	ref, err := opusmeta.NewPictureFromImage(opusmeta.PictureType(*typ), *desc, data)
	if err != nil {
		return err
	}
	if *replace {
		kept := file.Pictures[:0]
		for _, p := range file.Pictures {
			if p.Type != ref.Type {
				kept = append(kept, p)
			}
		}
		file.Pictures = kept
	}
	file.Pictures = append(file.Pictures, ref)

	log.Infof("%s: adding %s", file.Path, ref)
	return file.Save(cfg.saveOptions()...)
}

func extractPictures(args []string) error {
	fs := flag.NewFlagSet("picture extract", flag.ExitOnError)
	dir := fs.String("o", ".", "Output directory")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: picture extract needs FILE", errUsage)
	}

	file, err := open(fs.Arg(0))
	if err != nil {
		return err
	}
	if len(file.Pictures) == 0 {
		log.Infof("%s: no pictures", file.Path)
		return nil
	}

	base := strings.TrimSuffix(filepath.Base(file.Path), filepath.Ext(file.Path))
	for i, ref := range file.Pictures {
		if ref.Err != nil {
			log.Warnf("%s: picture %d not extracted: %v", file.Path, i+1, ref.Err)
			continue
		}
		p, err := ref.Load()
		if err != nil {
			return fmt.Errorf("picture %d: %w", i+1, err)
		}
		out := filepath.Join(*dir, fmt.Sprintf("%s-%d-%s%s", base, i+1, slug(ref.Type.String()), ref.Extension()))
		if err := os.WriteFile(out, p.Data, 0o644); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", out, ref)
	}
	return nil
}

func slug(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "-"))
}

func runImportFLAC(_ context.Context, cfg *Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: import-flac needs SRC.flac DST.opus", errUsage)
	}

	file, err := open(args[1])
	if err != nil {
		return err
	}
	before := len(file.Warnings)
	if err := file.ImportFLAC(args[0]); err != nil {
		return err
	}
	for _, w := range file.Warnings[before:] {
		log.WithField("path", args[0]).Warn(w.String())
	}

	log.Infof("%s: importing %d comments and %d pictures from %s",
		file.Path, len(file.Comments), len(file.Pictures), args[0])
	return file.Save(cfg.saveOptions()...)
}
