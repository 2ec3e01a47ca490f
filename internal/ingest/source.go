package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/variantlab/genotype-cli/internal/model"
)

// Members lists the candidate data files inside a zip archive. Plain text
// sources have no members and return nil.
func Members(path string) ([]string, error) {
	if !isZip(path) {
		return nil, nil
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open archive %s", path)
	}
	defer zr.Close()
	return candidateMembers(&zr.Reader), nil
}

// Open yields the raw byte stream to parse. For zip sources the member must
// be supplied by the caller whenever more than one candidate exists; a
// single candidate is selected automatically. Open never guesses between
// multiple members.
func Open(path, member string) (io.ReadCloser, error) {
	if !isZip(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		return f, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open archive %s", path)
	}

	candidates := candidateMembers(&zr.Reader)
	if len(candidates) == 0 {
		zr.Close()
		return nil, eris.Errorf("ingest: archive %s contains no data files", path)
	}
	if member == "" {
		if len(candidates) > 1 {
			zr.Close()
			return nil, &model.AmbiguousSourceError{Members: candidates}
		}
		member = candidates[0]
	}

	for _, zf := range zr.File {
		if zf.Name == member {
			rc, err := zf.Open()
			if err != nil {
				zr.Close()
				return nil, eris.Wrapf(err, "ingest: open member %s", member)
			}
			return &zipMember{rc: rc, zr: zr}, nil
		}
	}
	zr.Close()
	return nil, eris.Errorf("ingest: archive has no member %s", member)
}

func isZip(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

func candidateMembers(zr *zip.Reader) []string {
	var members []string
	for _, zf := range zr.File {
		name := strings.ToLower(zf.Name)
		if strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") {
			members = append(members, zf.Name)
		}
	}
	return members
}

// zipMember closes both the member stream and the enclosing archive.
type zipMember struct {
	rc io.ReadCloser
	zr *zip.ReadCloser
}

func (z *zipMember) Read(p []byte) (int, error) { return z.rc.Read(p) }

func (z *zipMember) Close() error {
	err := z.rc.Close()
	if cerr := z.zr.Close(); err == nil {
		err = cerr
	}
	return err
}
