package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/knowledge-capture/console/internal/middleware/validation"
	"github.com/knowledge-capture/console/internal/models"
	"github.com/knowledge-capture/console/internal/render"
	"github.com/knowledge-capture/console/internal/upload"
)

func newFilesCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage documents in the knowledge base",
	}

	cmd.AddCommand(
		newFilesListCommand(o),
		newFilesUploadCommand(o),
		newFilesDeleteCommand(o),
	)
	return cmd
}

func newFilesListCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents and their ingestion status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			if err := a.Upload.Refresh(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), render.Error("could not load documents: "+err.Error()))
			}
			render.Files(cmd.OutOrStdout(), a.Upload.Files())
			return nil
		},
	}
}

func newFilesUploadCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload a PDF, Markdown or text document",
		Long: `Upload a document for ingestion. Only the first path is uploaded;
any others are ignored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}

			path := args[0]
			if len(args) > 1 {
				fmt.Fprintln(cmd.ErrOrStderr(), render.Dim(fmt.Sprintf("only %s will be uploaded", filepath.Base(path))))
			}

			exts := a.Config.Upload.AllowedExtensions
			if len(exts) == 0 {
				exts = validation.DefaultExtensions
			}
			if !validation.HasAllowedExtension(path, exts) {
				return fmt.Errorf("%s: unsupported file type (allowed: %v)", filepath.Base(path), exts)
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, render.UploadStatus(uploadingStatus(info.Name())))

			err = a.Upload.Select(cmd.Context(), models.FileUpload{
				Name:        info.Name(),
				Size:        info.Size(),
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
				Body:        f,
			})
			fmt.Fprintln(out, render.UploadStatus(a.Upload.Status()))
			if err != nil {
				return err
			}

			render.Files(out, a.Upload.Files())
			return nil
		},
	}
}

func newFilesDeleteCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			if err := a.Upload.Refresh(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), render.Error("could not load documents: "+err.Error()))
			}

			// A failed delete is logged by the orchestrator; the listing
			// shows what is still there.
			_ = a.Upload.DeleteFile(cmd.Context(), args[0])

			render.Files(cmd.OutOrStdout(), a.Upload.Files())
			return nil
		},
	}
}

func uploadingStatus(name string) upload.Status {
	return upload.Status{State: models.UploadUploading, Filename: name}
}
