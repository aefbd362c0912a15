package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/extract"
	"github.com/consentforge/consentforge/pkg/logger"
)

// IngestCmd extracts a protocol PDF and builds a fresh index for it.
func IngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <pdf>",
		Short: "Extract a protocol PDF and build a retrieval index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromCmd(cmd)
			log := logger.FromContext(ctx)

			source := args[0]
			docID := core.MustNewID(core.PrefixDoc)
			stored, err := storeDocument(cfg.Data.FilesDir(), docID, source)
			if err != nil {
				return err
			}
			log.Info("document stored", "document_id", docID, "path", stored)

			pages, err := extract.NewPDFExtractor().Pages(ctx, stored)
			if err != nil {
				return err
			}
			mgr, err := newIndexManager(ctx, cfg)
			if err != nil {
				return err
			}
			meta, err := mgr.Build(ctx, docID.String(), filepath.Base(source), pages)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"document_id: %s\nindex_id: %s\npages: %d\nchunks: %d\n",
				docID, meta.IndexID, meta.PageCount, meta.ChunkCount)
			return nil
		},
	}
}

// storeDocument copies the source file under files/<docID>/ so later runs
// can re-resolve the original document.
func storeDocument(filesDir string, docID core.ID, source string) (string, error) {
	in, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer in.Close()
	dir := filepath.Join(filesDir, docID.String())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(source))
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create stored document: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy document: %w", err)
	}
	return dst, nil
}
