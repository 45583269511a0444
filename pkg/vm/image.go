package vm

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ImageVersion is bumped whenever the encoded template layout changes.
const ImageVersion = 1

// imageManifest is the human-readable summary stored next to the program.
type imageManifest struct {
	Version   int             `json:"version"`
	Entry     string          `json:"entry"`
	Functions []imageFunction `json:"functions"`
}

type imageFunction struct {
	Name         string `json:"name"`
	ArgCount     int    `json:"arg_count"`
	Instructions int    `json:"instructions"`
}

// WriteImage encodes templates as a ZIP archive holding manifest.json and
// the gob-encoded program.
func WriteImage(w io.Writer, templates []*FrameTemplate) error {
	zw := zip.NewWriter(w)

	manifest := imageManifest{Version: ImageVersion, Entry: "main"}
	for _, t := range templates {
		manifest.Functions = append(manifest.Functions, imageFunction{
			Name:         t.Name,
			ArgCount:     t.ArgCount,
			Instructions: len(t.Instructions),
		})
	}
	jsonData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeZipEntry(zw, "manifest.json", jsonData); err != nil {
		return err
	}

	var prog bytes.Buffer
	if err := gob.NewEncoder(&prog).Encode(templates); err != nil {
		return fmt.Errorf("encode program: %w", err)
	}
	if err := writeZipEntry(zw, "program.gob", prog.Bytes()); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// ReadImage decodes an archive produced by WriteImage.
func ReadImage(r io.ReaderAt, size int64) ([]*FrameTemplate, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	fileMap := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "manifest.json")
	if err != nil {
		return nil, err
	}
	var manifest imageManifest
	if err := json.Unmarshal(jsonData, &manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrBadImage, err)
	}
	if manifest.Version != ImageVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadImage, manifest.Version, ImageVersion)
	}

	progData, err := readZipEntry(fileMap, "program.gob")
	if err != nil {
		return nil, err
	}
	var templates []*FrameTemplate
	if err := gob.NewDecoder(bytes.NewReader(progData)).Decode(&templates); err != nil {
		return nil, fmt.Errorf("%w: program: %v", ErrBadImage, err)
	}

	if len(templates) != len(manifest.Functions) {
		return nil, fmt.Errorf("%w: manifest lists %d functions, program has %d",
			ErrBadImage, len(manifest.Functions), len(templates))
	}
	for i, t := range templates {
		if t.Name != manifest.Functions[i].Name {
			return nil, fmt.Errorf("%w: function %d is %q, manifest says %q",
				ErrBadImage, i, t.Name, manifest.Functions[i].Name)
		}
		if err := validateTemplate(t); err != nil {
			return nil, err
		}
	}
	return templates, nil
}

// validateTemplate rejects operands the VM could not execute safely.
func validateTemplate(t *FrameTemplate) error {
	if t.ArgCount < 0 {
		return fmt.Errorf("%w: %s has negative argument count %d", ErrBadImage, t.Name, t.ArgCount)
	}
	n := len(t.Instructions)
	for pc, instr := range t.Instructions {
		switch instr.Op.Operand() {
		case TargetOperand:
			if target := instr.Target(); target < 0 || target > n {
				return fmt.Errorf("%w: %s at %d: jump target %d outside [0, %d]", ErrBadImage, t.Name, pc, target, n)
			}
		case SlotOperand:
			if instr.Target() < 0 {
				return fmt.Errorf("%w: %s at %d: negative slot %d", ErrBadImage, t.Name, pc, instr.Target())
			}
		}
	}
	return nil
}

// SaveImage writes the image for templates to path.
func SaveImage(path string, templates []*FrameTemplate) error {
	var buf bytes.Buffer
	if err := WriteImage(&buf, templates); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadImage reads an image file from path.
func LoadImage(path string) ([]*FrameTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadImage(bytes.NewReader(data), int64(len(data)))
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("%w: entry %q not found", ErrBadImage, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
