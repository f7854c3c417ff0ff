// Package console implements the interactive menu front-end over the
// student, course and fee services.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/models"
	"github.com/noah-isme/student-management/internal/service"
	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

type studentOps interface {
	List(ctx context.Context) ([]models.Student, error)
	Get(ctx context.Context, id int64) (*models.Student, error)
	Create(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error)
	Update(ctx context.Context, id int64, req service.UpdateStudentRequest) (*models.Student, error)
	Delete(ctx context.Context, id int64) error
	Enroll(ctx context.Context, studentID, courseID int64) (*models.Student, error)
}

type feeOps interface {
	ProcessPayment(ctx context.Context, studentID int64, amount decimal.Decimal) error
	ProcessRefund(ctx context.Context, studentID int64, amount decimal.Decimal) error
	GetBalance(ctx context.Context, studentID int64) (decimal.Decimal, error)
	PayFullFee(ctx context.Context, studentID int64) error
	ListTransactions(ctx context.Context, studentID int64) ([]models.FeeTransaction, error)
}

type courseOps interface {
	List(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, req service.CourseRequest) (*models.Course, error)
	Delete(ctx context.Context, id int64) (int, error)
}

type rosterSaver interface {
	SaveStudents(ctx context.Context, format string) (string, error)
}

// errInputClosed signals that stdin reached EOF mid-prompt.
var errInputClosed = errors.New("input closed")

const rule = "------------------------------------------------------------"

// Services bundles the operations the menu drives.
type Services struct {
	Students studentOps
	Fees     feeOps
	Courses  courseOps
	Exporter rosterSaver
}

// Console is a blocking menu loop bound to one reader and writer.
type Console struct {
	in     *bufio.Scanner
	out    io.Writer
	svc    Services
	logger *zap.Logger
}

type menuItem struct {
	key    string
	label  string
	action func(ctx context.Context) error
}

// New constructs a Console.
func New(in io.Reader, out io.Writer, svc Services, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{in: bufio.NewScanner(in), out: out, svc: svc, logger: logger}
}

// Run shows the menu until the user exits, input ends or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	items := c.menu()
	fmt.Fprintln(c.out, strings.Repeat("=", len(rule)))
	fmt.Fprintln(c.out, "    ONLINE STUDENT MANAGEMENT SYSTEM")
	fmt.Fprintln(c.out, strings.Repeat("=", len(rule)))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.printMenu(items)
		choice, err := c.prompt("Enter your choice: ")
		if err != nil {
			return c.closed(err)
		}
		if choice == "0" {
			fmt.Fprintln(c.out, "\nThank you for using Student Management System!")
			return nil
		}

		item, ok := findItem(items, choice)
		if !ok {
			fmt.Fprintln(c.out, "\nInvalid choice! Please try again.")
			continue
		}
		if err := item.action(ctx); err != nil {
			if errors.Is(err, errInputClosed) {
				return nil
			}
			c.report(err)
		}
	}
}

func (c *Console) menu() []menuItem {
	return []menuItem{
		{"1", "Add New Student", c.addStudent},
		{"2", "View All Students", c.listStudents},
		{"3", "Update Student", c.updateStudent},
		{"4", "Delete Student", c.deleteStudent},
		{"5", "Process Fee Payment", c.payment},
		{"6", "Process Refund", c.refund},
		{"7", "Check Student Balance", c.balance},
		{"8", "Enroll Student in Course", c.enroll},
		{"9", "Pay Full Fee", c.payFullFee},
		{"10", "View All Courses", c.listCourses},
		{"11", "Add New Course", c.addCourse},
		{"12", "Delete Course", c.deleteCourse},
		{"13", "View Fee History", c.history},
		{"14", "Export Student Roster", c.exportRoster},
	}
}

func (c *Console) printMenu(items []menuItem) {
	fmt.Fprintln(c.out, "\n"+rule)
	fmt.Fprintln(c.out, "MAIN MENU")
	fmt.Fprintln(c.out, rule)
	for _, item := range items {
		fmt.Fprintf(c.out, "%s. %s\n", item.key, item.label)
	}
	fmt.Fprintln(c.out, "0. Exit")
	fmt.Fprintln(c.out, rule)
}

func findItem(items []menuItem, key string) (menuItem, bool) {
	for _, item := range items {
		if item.key == key {
			return item, true
		}
	}
	return menuItem{}, false
}

func (c *Console) closed(err error) error {
	if errors.Is(err, errInputClosed) {
		return nil
	}
	return err
}

// report prints err for the user. Internal faults are logged in full and
// shown generically.
func (c *Console) report(err error) {
	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.ErrInternal.Code {
		c.logger.Error("console operation failed", zap.Error(err))
	}
	fmt.Fprintf(c.out, "\nError: %s\n", appErr.Message)
}

func (c *Console) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *Console) promptID(label string) (int64, error) {
	raw, err := c.prompt(label)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a valid ID", raw))
	}
	return id, nil
}

func (c *Console) promptAmount(label string) (decimal.Decimal, error) {
	raw, err := c.prompt(label)
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a valid amount", raw))
	}
	return amount, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func (c *Console) table(header string, rows [][]string) error {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
