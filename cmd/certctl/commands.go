package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/99minutos/certificate-system/internal/api/middleware"
	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("certctl "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func required(values map[string]string) error {
	var missing []string
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return usageError("missing required flags: " + strings.Join(missing, ", "))
	}
	return nil
}

func runConnect(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet("connect").Parse(args); err != nil {
		return usageError(err.Error())
	}
	c, err := e.client(ctx)
	if err != nil {
		return err
	}
	identity, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "connected: %s on %s (%s)\n", identity, e.cfg.Chain.ChainName, e.cfg.Chain.ChainID)
	return nil
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("login")
	secret := fs.String("secret", "", "account secret (falls back to CERTCTL_SECRET)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *secret == "" {
		*secret = os.Getenv("CERTCTL_SECRET")
	}
	if err := required(map[string]string{"secret": *secret}); err != nil {
		return err
	}

	c, err := e.client(ctx)
	if err != nil {
		return err
	}
	res, err := c.Login(ctx, *secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "logged in: %s as %s (landing %s)\n", res.Identity, res.Role, res.Redirect)
	return nil
}

func runLogout(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet("logout").Parse(args); err != nil {
		return usageError(err.Error())
	}
	if err := e.sessionStore().Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "session cleared")
	return nil
}

func runWhoami(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet("whoami").Parse(args); err != nil {
		return usageError(err.Error())
	}
	s, err := e.sessionStore().Load(ctx)
	if err != nil {
		return err
	}
	if s == nil || !s.Authorized {
		fmt.Fprintln(e.out, "not logged in")
		return nil
	}
	fmt.Fprintf(e.out, "%s (%s)\n", s.Identity, s.Role)
	return nil
}

func runIssue(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("issue")
	id := fs.String("id", "", "certificate id")
	student := fs.String("student", "", "student name")
	course := fs.String("course", "", "course name")
	date := fs.String("date", time.Now().Format("2006-01-02"), "issue date")
	image := fs.String("image", "", "path to the certificate image")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if err := required(map[string]string{"id": *id, "student": *student, "course": *course, "image": *image}); err != nil {
		return err
	}

	data, err := readImage(*image, e.cfg.MaxImageBytes)
	if err != nil {
		return err
	}

	c, err := e.client(ctx)
	if err != nil {
		return err
	}
	res, err := c.IssueCertificate(ctx, ports.RegisterCertificateInput{
		CertificateID: *id,
		StudentName:   *student,
		CourseName:    *course,
		IssueDate:     *date,
		Image:         data,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "certificate %s stored\nreference: %s\n", res.CertificateID, res.BlobReference)
	if res.Proof != "" {
		fmt.Fprintf(e.out, "proof: %s\n", res.Proof)
	}
	return nil
}

func readImage(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, usageError(fmt.Sprintf("open image: %v", err))
	}
	defer f.Close()

	r := io.Reader(f)
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, domain.AtStage(domain.StageValidation, domain.ErrPayloadTooLarge)
	}
	return data, nil
}

func runLookup(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("lookup")
	id := fs.String("id", "", "certificate id")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if err := required(map[string]string{"id": *id}); err != nil {
		return err
	}

	certs, err := e.certificates(ctx)
	if err != nil {
		return err
	}
	rec, err := certs.Lookup(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "certificate: %s\nstudent:     %s\ncourse:      %s\nissued:      %s\nreference:   %s\n",
		rec.CertificateID, rec.StudentName, rec.CourseName, rec.IssueDate, rec.BlobReference)
	if rec.IssuedBy != "" {
		fmt.Fprintf(e.out, "issued by:   %s\n", rec.IssuedBy)
	}
	return nil
}

func runRetrieve(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("retrieve")
	ref := fs.String("ref", "", "content reference")
	id := fs.String("id", "", "certificate id (alternative to -ref)")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if (*ref == "") == (*id == "") {
		return usageError("exactly one of -ref or -id is required")
	}

	certs, err := e.certificates(ctx)
	if err != nil {
		return err
	}
	var data []byte
	if *ref != "" {
		data, err = certs.Retrieve(ctx, domain.BlobReference(*ref))
	} else {
		_, data, err = certs.RetrieveByCertificate(ctx, *id)
	}
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = e.out.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(e.out, "wrote %d bytes to %s\n", len(data), *out)
	return nil
}

func runRegisterUser(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("register-user")
	identity := fs.String("identity", "", "account identifier")
	name := fs.String("name", "", "display name")
	secret := fs.String("secret", "", "account secret")
	role := fs.String("role", "", "student|teacher (or 0|1)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if err := required(map[string]string{"identity": *identity, "name": *name, "secret": *secret, "role": *role}); err != nil {
		return err
	}

	id, err := domain.NormalizeIdentity(*identity)
	if err != nil {
		return err
	}
	r, err := domain.ParseRole(*role)
	if err != nil {
		return err
	}

	c, err := e.client(ctx)
	if err != nil {
		return err
	}
	rec, err := c.RegisterUser(ctx, id, *name, *secret, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "registered %s (%s) as %s\n", rec.Identity, rec.DisplayName, rec.Role)
	return nil
}

func runAdminToken(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("admin-token")
	subject := fs.String("subject", "", "operator name recorded in audit logs")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if err := required(map[string]string{"subject": *subject}); err != nil {
		return err
	}
	if e.cfg.JWTSecret == "" {
		return usageError("JWT_SECRET must be set")
	}

	token, err := middleware.SignToken(e.cfg.JWTSecret, *subject, middleware.RoleAdmin, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, token)
	return nil
}
