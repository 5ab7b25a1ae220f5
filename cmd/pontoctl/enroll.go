package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/ponto/internal/audit"
	"github.com/saturnino-fabrica-de-software/ponto/internal/face"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
	"github.com/saturnino-fabrica-de-software/ponto/internal/storage"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image-file]",
	Short: "Enroll an employee's face from an image file",
	Long: `Runs the quality gate and the configured embedding model on a photo and
stores the result as the employee's enrollment, replacing any previous one.

Examples:
  pontoctl enroll --employee 550e8400-e29b-41d4-a716-446655440000 ana.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

var unenrollCmd = &cobra.Command{
	Use:   "unenroll",
	Short: "Remove an employee's face enrollment",
	Args:  cobra.NoArgs,
	RunE:  runUnenroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(unenrollCmd)

	enrollCmd.Flags().String("employee", "", "Employee UUID")
	unenrollCmd.Flags().String("employee", "", "Employee UUID")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	employeeID, err := uuidFlag(cmd, "employee")
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	svc, closeFn, err := newEnrollmentService(cmd, e)
	if err != nil {
		return err
	}
	defer closeFn()

	enrollment, err := svc.Register(cmd.Context(), employeeID, data, contentTypeOf(args[0], data))
	if err != nil {
		return err
	}

	fmt.Printf("enrolled %s (model %s, dimension %d)\n", enrollment.EmployeeID, enrollment.ModelVersion, enrollment.Dimension)
	if enrollment.ReferenceImageKey != "" {
		fmt.Printf("reference image: %s\n", enrollment.ReferenceImageKey)
	}
	return nil
}

func runUnenroll(cmd *cobra.Command, _ []string) error {
	employeeID, err := uuidFlag(cmd, "employee")
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	svc, closeFn, err := newEnrollmentService(cmd, e)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := svc.Remove(cmd.Context(), employeeID); err != nil {
		return err
	}
	fmt.Printf("removed enrollment of %s\n", employeeID)
	return nil
}

func newEnrollmentService(cmd *cobra.Command, e *env) (*service.EnrollmentService, func(), error) {
	extractor, err := face.NewExtractorFromConfig(e.cfg, e.logger)
	if err != nil {
		return nil, nil, err
	}
	gate, err := face.NewQualityGateFromConfig(cmd.Context(), e.cfg, e.logger)
	if err != nil {
		_ = extractor.Close()
		return nil, nil, err
	}
	images, err := storage.Open(cmd.Context(), e.cfg.MinIO)
	if err != nil {
		_ = extractor.Close()
		return nil, nil, err
	}

	svc := service.NewEnrollmentService(
		repository.NewEmployeeRepository(e.pool),
		repository.NewEnrollmentRepository(e.pool),
		gate, extractor, e.cfg.ExtractionTimeout, e.logger,
		service.WithImageStore(images),
		service.WithEnrollmentAudit(audit.NewSlogLogger(e.logger)),
	)
	return svc, func() { _ = extractor.Close() }, nil
}

// contentTypeOf prefers the sniffed type and falls back to the extension.
func contentTypeOf(path string, data []byte) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	return ""
}
