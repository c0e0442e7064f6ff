// Command zelfdump prints the structural layout of an ELF object file:
// header fields, program headers, and section headers with resolved
// names.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
	"github.com/xyproto/zelf"
	"github.com/xyproto/zelf/internal/load"
)

var versionString = "zelfdump 0.1.0"

func main() {
	var (
		verbose     = flag.Bool("v", env.Bool("ZELFDUMP_VERBOSE"), "verbose mode (sets zelf.Verbose)")
		showVersion = flag.Bool("version", false, "print version information and exit")
		sections    = flag.Bool("sections", true, "print section headers")
		progHdrs    = flag.Bool("segments", true, "print program headers")
		dynamic     = flag.Bool("dynamic", false, "print .dynamic entries")
		useLoad     = flag.Bool("load", false, "read the file via an mmap'd load.LoadBuf instead of os.ReadFile")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString)
		os.Exit(0)
	}

	zelf.Verbose = *verbose

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: zelfdump [flags] <elf-file>\n")
		os.Exit(2)
	}

	var data []byte
	if *useLoad {
		buf, err := load.OpenMapped(args[0], 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "zelfdump: %v\n", err)
			os.Exit(1)
		}
		defer load.Unmap(buf)
		data = buf.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "zelfdump: %v\n", err)
			os.Exit(1)
		}
	}

	if err := dump(data, *progHdrs, *sections, *dynamic); err != nil {
		fmt.Fprintf(os.Stderr, "zelfdump: %v\n", err)
		os.Exit(1)
	}
}

func dump(data []byte, showProgHdrs, showSections, showDynamic bool) error {
	hdr, err := zelf.NewElfHdr(data)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	d := hdr.Data()
	fmt.Printf("Class:       %s\n", d.Class)
	fmt.Printf("Machine:     %s\n", d.Machine)
	fmt.Printf("ABI:         %s (version %d)\n", d.ABI, d.ABIVersion)
	fmt.Printf("Type:        %v\n", d.Kind)
	fmt.Printf("Entry:       %s\n", d.EntryAddr)

	if showProgHdrs {
		ph, err := d.ProgHdrs(data)
		if err != nil {
			return fmt.Errorf("program headers: %w", err)
		}
		fmt.Printf("\nProgram headers (%d):\n", ph.Len())
		it := ph.Iter()
		for {
			h, ok := it.Next()
			if !ok {
				break
			}
			pd := h.Data()
			fmt.Printf("  %-10v vaddr=%-12s filesz=0x%-8x memsz=0x%-8x perms=%s\n",
				pd.Tag, pd.VirtAddr, pd.FileSize, pd.MemSize, permsString(pd.Perms))
		}
	}

	if showSections || showDynamic {
		sh, err := d.SectionHdrs(data)
		if err != nil {
			return fmt.Errorf("section headers: %w", err)
		}
		var strtab zelf.Strtab
		haveStrtab := false
		if shstr, ok := sh.Idx(int(d.SectionHdrStrtabIdx)); ok {
			shd, err := shstr.Data()
			if err == nil {
				raw, err := shd.WithElfData(data)
				if err == nil {
					if t, err := zelf.NewStrtab(raw); err == nil {
						strtab = t
						haveStrtab = true
					}
				}
			}
		}

		if showSections {
			fmt.Printf("\nSection headers (%d):\n", sh.Len())
			it := sh.Iter()
			for {
				h, ok := it.Next()
				if !ok {
					break
				}
				shd, err := h.Data()
				if err != nil {
					fmt.Fprintf(os.Stderr, "  <entry error: %v>\n", err)
					continue
				}
				name := "?"
				if haveStrtab {
					if r, err := shd.WithStrtab(strtab); err == nil && r.NameErr == nil {
						name = r.Name
					}
				}
				fmt.Printf("  %-20s %-10v size=0x%-8x addr=%s\n", name, shd.Tag, shd.Size, shd.Addr)
			}
		}

		if showDynamic {
			if err := dumpDynamic(sh, data, d.Class, d.Order); err != nil {
				return fmt.Errorf("dynamic: %w", err)
			}
		}
	}

	return nil
}

func dumpDynamic(sh zelf.SectionHdrs, data []byte, class zelf.Class, order binary.ByteOrder) error {
	it := sh.Iter()
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		shd, err := h.Data()
		if err != nil {
			continue
		}
		if shd.Tag != zelf.SecHdrDynamic {
			continue
		}
		raw, err := shd.WithElfData(data)
		if err != nil {
			return err
		}
		dyn, err := zelf.NewDynamic(raw, class, order)
		if err != nil {
			return err
		}
		fmt.Printf("\nDynamic section (%d entries):\n", dyn.Len())
		dit := dyn.Iter()
		for {
			ent, err, ok := dit.Next()
			if !ok {
				break
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "  <entry error: %v>\n", err)
				break
			}
			fmt.Printf("  %v\n", ent)
		}
		return nil
	}
	fmt.Println("\nNo .dynamic section present")
	return nil
}

func permsString(p zelf.ProgHdrPerms) string {
	b := []byte("---")
	if p.R {
		b[0] = 'r'
	}
	if p.W {
		b[1] = 'w'
	}
	if p.X {
		b[2] = 'x'
	}
	return string(b)
}
