package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"recordcore/internal/cli"
	"recordcore/internal/core"
	"recordcore/pkg/derive"
	"recordcore/pkg/domain"
)

func classCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "class", Short: "Manage classes"}

	var class domain.Class
	var shift string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			class.Shift = domain.Shift(shift)
			created, _, err := rt.App().Service.CreateClass(cmd.Context(), class)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "class %s created (%s)\n", created.Name, created.ID)
			return err
		},
	}
	create.Flags().StringVar(&class.Name, "name", "", "class name")
	create.Flags().IntVar(&class.Year, "year", 0, "school year")
	create.Flags().StringVar(&class.GradeLevel, "grade-level", "", "grade level")
	create.Flags().StringVar(&shift, "shift", "", "morning, afternoon or evening")
	create.Flags().StringVar(&class.TeacherName, "teacher", "", "responsible teacher")
	create.Flags().IntVar(&class.Capacity, "capacity", 30, "maximum number of students")

	list := &cobra.Command{
		Use:   "list",
		Short: "List classes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			classes, err := rt.App().Service.ListClasses(cmd.Context())
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"ID", "Name", "Year", "Shift", "Teacher", "Capacity"}}
			for _, c := range classes {
				t.Rows = append(t.Rows, []string{c.ID, c.Name, strconv.Itoa(c.Year), string(c.Shift), c.TeacherName, strconv.Itoa(c.Capacity)})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}

	var renameID, newName string
	rename := &cobra.Command{
		Use:   "rename",
		Short: "Rename a class and move its students along",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, err := rt.App().Service.UpdateClass(cmd.Context(), renameID, func(c *domain.Class) error {
				c.Name = newName
				return nil
			})
			return err
		},
	}
	rename.Flags().StringVar(&renameID, "id", "", "class id")
	rename.Flags().StringVar(&newName, "name", "", "new name")

	var deleteID string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a class that has no students",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := rt.App().Service.DeleteClass(cmd.Context(), deleteID)
			return err
		},
	}
	del.Flags().StringVar(&deleteID, "id", "", "class id")

	cmd.AddCommand(create, list, rename, del)
	return cmd
}

func teacherCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "teacher", Short: "Manage teachers"}

	var teacher domain.Teacher
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a teacher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, _, err := rt.App().Service.CreateTeacher(cmd.Context(), teacher)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "teacher %s created (%s)\n", created.Name, created.ID)
			return err
		},
	}
	create.Flags().StringVar(&teacher.Name, "name", "", "full name")
	create.Flags().StringVar(&teacher.TaxID, "tax-id", "", "tax id")
	create.Flags().StringVar(&teacher.Subject, "subject", "", "subject taught")
	create.Flags().StringVar(&teacher.Email, "email", "", "email")
	create.Flags().StringVar(&teacher.Phone, "phone", "", "phone")

	var subject string
	list := &cobra.Command{
		Use:   "list",
		Short: "List teachers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			teachers, err := rt.App().Service.ListTeachers(cmd.Context(), subject)
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"ID", "Name", "Tax ID", "Subject"}}
			for _, tc := range teachers {
				t.Rows = append(t.Rows, []string{tc.ID, tc.Name, tc.TaxID, tc.Subject})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}
	list.Flags().StringVar(&subject, "subject", "", "only teachers of subject")

	var deleteID string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a teacher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := rt.App().Service.DeleteTeacher(cmd.Context(), deleteID)
			return err
		},
	}
	del.Flags().StringVar(&deleteID, "id", "", "teacher id")

	cmd.AddCommand(create, list, del)
	return cmd
}

func studentCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "student", Short: "Manage students"}

	var student domain.Student
	enroll := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll a student in a class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, _, err := rt.App().Service.EnrollStudent(cmd.Context(), student)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "student %s enrolled in %s (%s)\n", created.Name, created.ClassName, created.ID)
			return err
		},
	}
	enroll.Flags().StringVar(&student.Name, "name", "", "full name")
	enroll.Flags().StringVar(&student.EnrollmentID, "enrollment", "", "enrollment number")
	enroll.Flags().StringVar(&student.ClassName, "class", "", "class name")
	enroll.Flags().StringVar(&student.BirthDate, "birth-date", "", "birth date (YYYY-MM-DD)")
	enroll.Flags().StringVar(&student.Email, "email", "", "email")

	var filter core.StudentFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List students",
		RunE: func(cmd *cobra.Command, _ []string) error {
			students, err := rt.App().Service.ListStudents(cmd.Context(), filter)
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"ID", "Name", "Enrollment", "Class"}}
			for _, s := range students {
				t.Rows = append(t.Rows, []string{s.ID, s.Name, s.EnrollmentID, s.ClassName})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}
	list.Flags().StringVar(&filter.NameContains, "name", "", "name contains")
	list.Flags().StringVar(&filter.EnrollmentContains, "enrollment", "", "enrollment contains")
	list.Flags().StringVar(&filter.ClassName, "class", "", "class name")

	var transferID, toClass string
	transfer := &cobra.Command{
		Use:   "transfer",
		Short: "Move a student to another class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			moved, _, err := rt.App().Service.TransferStudent(cmd.Context(), transferID, toClass)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "student %s moved to %s\n", moved.Name, moved.ClassName)
			return err
		},
	}
	transfer.Flags().StringVar(&transferID, "id", "", "student id")
	transfer.Flags().StringVar(&toClass, "class", "", "target class name")

	var deleteID string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a student with its grades and absences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			counts, _, err := rt.App().Service.DeleteStudent(cmd.Context(), deleteID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d academic records and %d absences\n", counts.AcademicRecords, counts.Absences)
			return err
		},
	}
	del.Flags().StringVar(&deleteID, "id", "", "student id")

	cmd.AddCommand(enroll, list, transfer, del)
	return cmd
}

func gradesCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "grades", Short: "Record and show bimester grades"}

	var studentID, subject string
	var entries [domain.BimesterCount]string
	set := &cobra.Command{
		Use:   "set",
		Short: "Merge bimester grades into a student's subject record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, _, err := rt.App().Service.UpsertAcademicRecord(cmd.Context(), studentID, subject, entries)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: average %s, %s\n", rec.Subject, rt.App().Format.Grade(rec.Average), rec.Status)
			return err
		},
	}
	set.Flags().StringVar(&studentID, "student", "", "student id")
	set.Flags().StringVar(&subject, "subject", "", "subject")
	for i := range entries {
		set.Flags().StringVar(&entries[i], fmt.Sprintf("b%d", i+1), "", fmt.Sprintf("bimester %d grade (empty keeps the stored value)", i+1))
	}

	var showID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a student's grades with the current status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			views, err := rt.App().Service.GradesByStudent(cmd.Context(), showID)
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"Subject", "B1", "B2", "B3", "B4", "Average", "Absences", "Status"}}
			for _, v := range views {
				row := []string{v.Record.Subject}
				for _, b := range v.Record.Bimesters {
					row = append(row, derive.FormatGrade(b))
				}
				row = append(row, derive.FormatAverage(v.EffectiveAvg), strconv.Itoa(v.TotalAbsences), string(v.EffectiveStatus))
				t.Rows = append(t.Rows, row)
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}
	show.Flags().StringVar(&showID, "student", "", "student id")

	cmd.AddCommand(set, show)
	return cmd
}

func attendanceCmd(rt *cli.Runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "attendance", Short: "Toggle and review attendance"}

	var toggle core.AttendanceToggle
	var present bool
	mark := &cobra.Command{
		Use:   "mark",
		Short: "Mark a student absent, or present with --present",
		RunE: func(cmd *cobra.Command, _ []string) error {
			presence := domain.Absent
			if present {
				presence = domain.Present
			}
			counts, err := rt.App().Service.ToggleAttendance(cmd.Context(), toggle.StudentID, toggle.Subject, toggle.Date, presence)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "inserted %d, removed %d\n", counts.Inserted, counts.Removed)
			return err
		},
	}
	mark.Flags().StringVar(&toggle.StudentID, "student", "", "student id")
	mark.Flags().StringVar(&toggle.Subject, "subject", "", "subject")
	mark.Flags().StringVar(&toggle.Date, "date", "", "day (YYYY-MM-DD)")
	mark.Flags().BoolVar(&present, "present", false, "mark present instead of absent")

	var className, subject, date string
	sheet := &cobra.Command{
		Use:   "sheet",
		Short: "Show the roll of a class for one subject and day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := rt.App().Service.AttendanceSheet(cmd.Context(), className, subject, date)
			if err != nil {
				return err
			}
			t := core.Table{Headers: []string{"Student", "Enrollment", "Presence"}}
			for _, e := range entries {
				t.Rows = append(t.Rows, []string{e.StudentName, e.EnrollmentID, string(e.Presence)})
			}
			return cli.PrintTable(cmd.OutOrStdout(), t)
		},
	}
	sheet.Flags().StringVar(&className, "class", "", "class name")
	sheet.Flags().StringVar(&subject, "subject", "", "subject")
	sheet.Flags().StringVar(&date, "date", "", "day (YYYY-MM-DD)")

	cmd.AddCommand(mark, sheet)
	return cmd
}

func reportCmd(rt *cli.Runtime) *cobra.Command {
	var filter core.ReportFilter
	var xlsx string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the school report, optionally exporting it to a spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := rt.App()
			rows, err := app.Service.SchoolReport(cmd.Context(), filter)
			if err != nil {
				return err
			}
			table := core.SchoolReportTable(rows, app.Format)
			if xlsx != "" {
				key, err := app.Service.ExportTable(cmd.Context(), xlsx, table)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "report written to %s (archived as %s)\n", xlsx, key)
				return err
			}
			return cli.PrintTable(cmd.OutOrStdout(), table)
		},
	}
	cmd.Flags().StringVar(&filter.StudentName, "student", "", "student name contains")
	cmd.Flags().StringVar(&filter.ClassName, "class", "", "class name")
	cmd.Flags().StringVar(&filter.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&filter.TeacherName, "teacher", "", "teacher name contains")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "write the report to this .xlsx file")
	return cmd
}
