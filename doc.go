// Package opusmeta reads and rewrites the metadata of Ogg Opus files.
//
// It parses the identification header (OpusHead) and the comment header
// (OpusTags) of a single Opus stream: the vendor string, the ordered list
// of KEY=VALUE comments and pictures embedded as METADATA_BLOCK_PICTURE
// comments. The comment header can be replaced without touching the audio
// payload; pages that follow it are moved, renumbered and re-checksummed.
//
// # Quick Start
//
//	file, err := opusmeta.Open("song.opus")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	tags := file.Tags()
//	fmt.Printf("%s - %s\n", tags.Artist, tags.Title)
//	fmt.Printf("Duration: %s\n", file.Audio.Duration)
//
// # Pictures
//
// Pictures are not loaded by Open. Each PictureRef records where its
// comment value starts so the image bytes can be decoded later:
//
//	for _, ref := range file.Pictures {
//		pic, err := ref.Load()
//		if err != nil {
//			return err
//		}
//		os.WriteFile("cover"+ref.Extension(), pic.Data, 0o644)
//	}
//
// # Writing
//
// Edit the File and save it. Save works on a temporary copy and renames it
// over the original, so a failed write leaves the file untouched:
//
//	file.Comments.Set("TITLE", "New Title")
//	if err := file.Save(opusmeta.WithBackup(".bak")); err != nil {
//		return err
//	}
//
// Rewrite edits a file in place when a copy is too expensive.
//
// # Error Handling
//
// Framing problems are reported as *CorruptedFileError wrapping one of the
// sentinel errors (ErrChecksum, ErrInvalidMagic, ...). Header contents that
// violate the format are *InvalidDataError, and declared lengths running
// past the available data are *OutOfBoundsError. Problems with a single
// comment or picture do not fail Open; they are collected in File.Warnings
// unless WithStrictParsing is given.
package opusmeta
