package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/platinummonkey/iam/pkg/auth"
)

func main() {
	alg := flag.String("alg", "RS256", "JWS algorithm the key pair is for (RS*, PS*, ES*, EdDSA)")
	bits := flag.Int("bits", 3072, "RSA modulus size; ignored for EC and EdDSA")
	outDir := flag.String("out", filepath.Join("keys", "sample"), "Directory to write private.pem and public.pem to")
	name := flag.String("name", "", "File name prefix, e.g. 2026-10 writes 2026-10-private.pem")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if !auth.SupportedAlgorithm(*alg) {
		fatalf("unsupported algorithm %q", *alg)
	}

	privPEM, pubPEM, err := auth.GenerateKeyPair(*alg, *bits)
	if err != nil {
		fatalf("%v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("failed to create %s: %v", *outDir, err)
	}

	prefix := ""
	if *name != "" {
		prefix = *name + "-"
	}
	privPath := filepath.Join(*outDir, prefix+"private.pem")
	pubPath := filepath.Join(*outDir, prefix+"public.pem")

	if err := writeFile(privPath, privPEM, 0o600, *force); err != nil {
		fatalf("%v", err)
	}
	if err := writeFile(pubPath, pubPEM, 0o644, *force); err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("Wrote %s key pair:\n  %s\n  %s\n", *alg, privPath, pubPath)
	fmt.Println("Add the public key to IAM_JWT_VERIFICATION_KEYS (or the key-set file) before signing with it.")
}

func writeFile(path string, data []byte, perm os.FileMode, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, perm)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists; use -force to overwrite", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
