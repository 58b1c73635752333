package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
)

var (
	ErrNoFile        = errors.New("no file part in request")
	ErrEmptyFilename = errors.New("no selected file")
	ErrMalformedForm = errors.New("malformed multipart form")
)

const maxValueBytes = 64 << 10

// Form is a multipart request whose file part has been written to a Store.
type Form struct {
	File   *File
	Values url.Values
}

// Receive streams the parts of mr. Only a part carrying a filename parameter
// counts as a file: the first such part named field is saved to s, plain
// fields are collected into Values, and everything else is drained.
//
// A part named field with filename="" yields ErrEmptyFilename. A plain field
// of that name does not count as a file and yields ErrNoFile.
func (s *Store) Receive(mr *multipart.Reader, field string) (*Form, error) {
	form := &Form{Values: url.Values{}}
	seen := false

	fail := func(err error) (*Form, error) {
		_ = form.File.Remove()
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("%w: %w", ErrMalformedForm, err))
		}

		name := part.FormName()
		filename, isFile := partFilename(part)

		switch {
		case name == "":
		case isFile && name == field && !seen:
			seen = true
			if filename != "" {
				file, err := s.savePart(filename, part)
				if err != nil {
					_ = part.Close()
					return fail(err)
				}
				form.File = file
			}
		case !isFile:
			value, err := io.ReadAll(io.LimitReader(part, maxValueBytes+1))
			if err != nil {
				_ = part.Close()
				return fail(fmt.Errorf("%w: %w", ErrMalformedForm, err))
			}
			if len(value) > maxValueBytes {
				_ = part.Close()
				return fail(fmt.Errorf("%w: field %q exceeds %d bytes", ErrMalformedForm, name, maxValueBytes))
			}
			form.Values.Add(name, string(value))
		}

		_ = part.Close()
	}

	switch {
	case form.File != nil:
		return form, nil
	case seen:
		return nil, ErrEmptyFilename
	default:
		return nil, ErrNoFile
	}
}

func (s *Store) savePart(filename string, part *multipart.Part) (*File, error) {
	src := &recordingReader{r: part}
	file, err := s.Save(filename, src)
	if err != nil && src.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedForm, src.err)
	}
	return file, err
}

// partFilename returns the raw filename parameter of the part's
// Content-Disposition. Unlike Part.FileName it keeps directory components,
// which SanitizeFilename folds into the stored name.
func partFilename(p *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	filename, ok := params["filename"]
	return filename, ok
}

// recordingReader remembers the first read error so request-side failures
// can be told apart from disk write failures.
type recordingReader struct {
	r   io.Reader
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}
