package main

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
	"github.com/saturnino-fabrica-de-software/ponto/internal/storage"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Download an employee's enrollment reference image",
	Args:  cobra.NoArgs,
	RunE:  runImage,
}

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().String("employee", "", "Employee UUID")
	imageCmd.Flags().StringP("out", "o", "", "Output file (defaults to the object name)")
}

func runImage(cmd *cobra.Command, _ []string) error {
	employeeID, err := uuidFlag(cmd, "employee")
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.cfg.MinIO.Enabled() {
		return errors.New("image store is not configured (MINIO_ENDPOINT)")
	}

	enrollment, err := repository.NewEnrollmentRepository(e.pool).GetByEmployee(cmd.Context(), employeeID)
	if err != nil {
		return err
	}
	if enrollment.ReferenceImageKey == "" {
		return fmt.Errorf("enrollment of %s has no reference image", employeeID)
	}

	store, err := storage.NewMinIOStore(e.cfg.MinIO)
	if err != nil {
		return err
	}
	data, err := store.GetObject(cmd.Context(), enrollment.ReferenceImageKey)
	if err != nil {
		return err
	}

	out := mustGetString(cmd, "out")
	if out == "" {
		out = path.Base(enrollment.ReferenceImageKey)
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(data), out)
	return nil
}
