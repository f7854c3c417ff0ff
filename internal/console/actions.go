package console

import (
	"context"
	"fmt"
	"strconv"

	"github.com/noah-isme/student-management/internal/service"
)

func (c *Console) addStudent(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== ADD NEW STUDENT ===")
	name, err := c.prompt("Enter student name: ")
	if err != nil {
		return err
	}
	email, err := c.prompt("Enter email: ")
	if err != nil {
		return err
	}
	phone, err := c.prompt("Enter phone: ")
	if err != nil {
		return err
	}
	student, err := c.svc.Students.Create(ctx, service.CreateStudentRequest{Name: name, Email: email, Phone: optional(phone)})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nStudent added successfully! ID: %d\n", student.ID)
	return nil
}

func (c *Console) listStudents(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== ALL STUDENTS ===")
	students, err := c.svc.Students.List(ctx)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		fmt.Fprintln(c.out, "No students found.")
		return nil
	}
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		course := "-"
		if s.CourseID != nil {
			course = strconv.FormatInt(*s.CourseID, 10)
		}
		rows = append(rows, []string{strconv.FormatInt(s.ID, 10), s.Name, s.Email, orDash(s.PhoneValue()), s.Balance.StringFixed(2), course, s.Status})
	}
	return c.table("ID\tName\tEmail\tPhone\tBalance\tCourse\tStatus", rows)
}

// updateStudent keeps the current value for every field left blank.
func (c *Console) updateStudent(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== UPDATE STUDENT ===")
	id, err := c.promptID("Enter student ID: ")
	if err != nil {
		return err
	}
	student, err := c.svc.Students.Get(ctx, id)
	if err != nil {
		return err
	}

	req := service.UpdateStudentRequest{Name: student.Name, Email: student.Email, Phone: student.Phone, Status: student.Status}
	fields := []struct {
		label string
		dest  *string
	}{
		{"name", &req.Name},
		{"email", &req.Email},
		{"status", &req.Status},
	}
	for _, f := range fields {
		v, err := c.prompt(fmt.Sprintf("Enter new %s (current: %s): ", f.label, *f.dest))
		if err != nil {
			return err
		}
		if v != "" {
			*f.dest = v
		}
	}
	phone, err := c.prompt(fmt.Sprintf("Enter new phone (current: %s): ", orDash(student.PhoneValue())))
	if err != nil {
		return err
	}
	if phone != "" {
		req.Phone = &phone
	}

	if _, err := c.svc.Students.Update(ctx, id, req); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "\nStudent updated successfully!")
	return nil
}

func (c *Console) deleteStudent(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== DELETE STUDENT ===")
	id, err := c.promptID("Enter student ID to delete: ")
	if err != nil {
		return err
	}
	if err := c.svc.Students.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "\nStudent deleted successfully!")
	return nil
}

func (c *Console) payment(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== PROCESS PAYMENT ===")
	id, err := c.promptID("Enter student ID: ")
	if err != nil {
		return err
	}
	amount, err := c.promptAmount("Enter payment amount: ")
	if err != nil {
		return err
	}
	if err := c.svc.Fees.ProcessPayment(ctx, id, amount); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "\nPayment processed successfully!")
	return c.printBalance(ctx, id, "New balance")
}

func (c *Console) refund(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== PROCESS REFUND ===")
	id, err := c.promptID("Enter student ID: ")
	if err != nil {
		return err
	}
	amount, err := c.promptAmount("Enter refund amount: ")
	if err != nil {
		return err
	}
	if err := c.svc.Fees.ProcessRefund(ctx, id, amount); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "\nRefund processed successfully!")
	return c.printBalance(ctx, id, "New balance")
}

func (c *Console) balance(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== CHECK BALANCE ===")
	id, err := c.promptID("Enter student ID: ")
	if err != nil {
		return err
	}
	return c.printBalance(ctx, id, "\nCurrent balance")
}

func (c *Console) printBalance(ctx context.Context, id int64, label string) error {
	balance, err := c.svc.Fees.GetBalance(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: %s\n", label, balance.StringFixed(2))
	return nil
}

func (c *Console) enroll(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== ENROLL STUDENT ===")
	studentID, err := c.promptID("Enter student ID: ")
	if err != nil {
		return err
	}
	courseID, err := c.promptID("Enter course ID: ")
	if err != nil {
		return err
	}
	student, err := c.svc.Students.Enroll(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nStudent enrolled successfully! Balance due: %s\n", student.Balance.StringFixed(2))
	return nil
}

func (c *Console) payFullFee(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== PAY FULL FEE ===")
	id, err := c.promptID("Enter student ID: ")
	if err != nil {
		return err
	}
	if err := c.svc.Fees.PayFullFee(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "\nFull fee paid successfully!")
	return c.printBalance(ctx, id, "New balance")
}

func (c *Console) listCourses(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== ALL COURSES ===")
	courses, err := c.svc.Courses.List(ctx)
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		fmt.Fprintln(c.out, "No courses found.")
		return nil
	}
	rows := make([][]string, 0, len(courses))
	for _, co := range courses {
		duration := "-"
		if co.Duration != nil {
			duration = *co.Duration
		}
		rows = append(rows, []string{strconv.FormatInt(co.ID, 10), co.CourseName, duration, co.Fee.StringFixed(2)})
	}
	return c.table("ID\tCourse\tDuration\tFee", rows)
}

func (c *Console) addCourse(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== ADD NEW COURSE ===")
	name, err := c.prompt("Enter course name: ")
	if err != nil {
		return err
	}
	duration, err := c.prompt("Enter duration: ")
	if err != nil {
		return err
	}
	fee, err := c.promptAmount("Enter fee: ")
	if err != nil {
		return err
	}
	description, err := c.prompt("Enter description: ")
	if err != nil {
		return err
	}
	course, err := c.svc.Courses.Create(ctx, service.CourseRequest{
		CourseName:  name,
		Duration:    optional(duration),
		Fee:         fee,
		Description: optional(description),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nCourse added successfully! ID: %d\n", course.ID)
	return nil
}

func (c *Console) deleteCourse(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== DELETE COURSE ===")
	id, err := c.promptID("Enter course ID to delete: ")
	if err != nil {
		return err
	}
	confirm, err := c.prompt("All enrolled students will be deleted. Type YES to confirm: ")
	if err != nil {
		return err
	}
	if confirm != "YES" {
		fmt.Fprintln(c.out, "\nDeletion cancelled.")
		return nil
	}
	removed, err := c.svc.Courses.Delete(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nCourse deleted successfully! Students removed: %d\n", removed)
	return nil
}

func (c *Console) history(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== FEE HISTORY ===")
	id, err := c.promptID("Enter student ID: ")
	if err != nil {
		return err
	}
	entries, err := c.svc.Fees.ListTransactions(ctx, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No fee transactions found.")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			string(e.Type),
			e.Amount.StringFixed(2),
			e.BalanceBefore.StringFixed(2),
			e.BalanceAfter.StringFixed(2),
			e.Reference,
		})
	}
	return c.table("When\tType\tAmount\tBefore\tAfter\tReference", rows)
}

func (c *Console) exportRoster(ctx context.Context) error {
	fmt.Fprintln(c.out, "\n=== EXPORT ROSTER ===")
	format, err := c.prompt("Enter format (csv/pdf) [csv]: ")
	if err != nil {
		return err
	}
	if format == "" {
		format = service.ExportFormatCSV
	}
	path, err := c.svc.Exporter.SaveStudents(ctx, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nRoster written to %s\n", path)
	return nil
}
