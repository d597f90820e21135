package task

import (
	"bytes"
	"os"
)

// kernelOptsMarker is the Maple directive this patch neutralizes. Real
// Maple libraries set a kernelopts(numcpus=...) call near the top; forcing
// it to 1 is what --maple-single-core buys.
var kernelOptsMarker = []byte("kernelopts(numcpus")

// ForceSingleCoreMaple rewrites a Maple library in place so that every
// kernelopts(numcpus=...) call is forced to numcpus=1, keeping a .bak
// backup of the original. RestoreSingleCoreMaple undoes it.
func ForceSingleCoreMaple(programFile string) error {
	original, err := os.ReadFile(programFile)
	if err != nil {
		return err
	}
	if !bytes.Contains(original, kernelOptsMarker) {
		return nil
	}
	if err := os.WriteFile(programFile+".bak", original, 0644); err != nil {
		return err
	}
	patched := patchNumCPUs(original)
	return os.WriteFile(programFile, patched, 0644)
}

// RestoreSingleCoreMaple moves programFile.bak back over programFile, if
// a backup exists. It is a no-op if ForceSingleCoreMaple never ran.
func RestoreSingleCoreMaple(programFile string) error {
	backup := programFile + ".bak"
	if _, err := os.Stat(backup); os.IsNotExist(err) {
		return nil
	}
	return os.Rename(backup, programFile)
}

func patchNumCPUs(src []byte) []byte {
	var out bytes.Buffer
	for {
		idx := bytes.Index(src, kernelOptsMarker)
		if idx < 0 {
			break
		}
		closeIdx := bytes.IndexByte(src[idx:], ')')
		if closeIdx < 0 {
			break
		}
		out.Write(src[:idx])
		out.WriteString("kernelopts(numcpus=1)")
		src = src[idx+closeIdx+1:]
	}
	out.Write(src)
	return out.Bytes()
}
