/*
payloads.go - Backend payloads for the HR request forms

PURPOSE:
  Maps the values a user entered into the JSON bodies the HR backend
  expects. Dates and times stay ISO-like strings ("YYYY-MM-DD", "HH:mm");
  numbers are sent as JSON numbers.

AVAILABLE FORMS:
  Leave:          {leaveType, startDate, endDate, reason}
  Overtime:       {date, startTime, endTime, totalHours, reason, status}
  Reimbursement:  {employeeId, expenseDate, amountRequested, reason, status}
  Training:       {employeeId, trainingId, sessionDate, motivation, status}

RENAMES:
  Reimbursement collects "amount" and "description" but the backend names
  them "amountRequested" and "reason".

SEE ALSO:
  - forms/*.yaml: The form documents these payloads belong to
  - catalog.go: Attaches the builders by form id
*/
package requests

import (
	"encoding/json"
	"fmt"

	"github.com/warp/workforce-hub/form"
)

// Form ids.
const (
	FormLeave         = "leave"
	FormOvertime      = "overtime"
	FormReimbursement = "reimbursement"
	FormTraining      = "training"
)

// Backend endpoints.
const (
	EndpointLeave         = "/api/employee/leave-requests"
	EndpointOvertime      = "/api/employee/overtime-requests"
	EndpointReimbursement = "/api/employee/reimbursement-requests"
	EndpointTraining      = "/api/employee/training-enrollments"
)

// StatusPending is the initial review status the backend expects on new
// overtime, reimbursement and training requests.
const StatusPending = "PENDING"

// LeaveTypes are the accepted values of the leave form's leaveType field.
var LeaveTypes = []string{
	"Annual Leave",
	"Sick Leave",
	"Personal Leave",
	"Maternity Leave",
	"Paternity Leave",
	"Unpaid Leave",
}

// Payloads returns the payload builder of every HR form, keyed by form id.
func Payloads() map[string]form.PayloadBuilder {
	return map[string]form.PayloadBuilder{
		FormLeave:         LeavePayload,
		FormOvertime:      OvertimePayload,
		FormReimbursement: ReimbursementPayload,
		FormTraining:      TrainingPayload,
	}
}

func LeavePayload(v form.Values) (form.Payload, error) {
	return form.Payload{
		"leaveType": v.String("leaveType"),
		"startDate": v.String("startDate"),
		"endDate":   v.String("endDate"),
		"reason":    v.String("reason"),
	}, nil
}

// OvertimePayload sends totalHours rounded to two decimals.
func OvertimePayload(v form.Values) (form.Payload, error) {
	hours, ok := v.Decimal("totalHours")
	if !ok {
		return nil, fmt.Errorf("overtime payload: totalHours is not a number: %v", v["totalHours"])
	}
	return form.Payload{
		"date":       v.String("date"),
		"startTime":  v.String("startTime"),
		"endTime":    v.String("endTime"),
		"totalHours": json.Number(form.RoundHours(hours).String()),
		"reason":     v.String("reason"),
		"status":     StatusPending,
	}, nil
}

func ReimbursementPayload(v form.Values) (form.Payload, error) {
	amount, ok := v.Decimal("amount")
	if !ok {
		return nil, fmt.Errorf("reimbursement payload: amount is not a number: %v", v["amount"])
	}
	return form.Payload{
		"employeeId":      v.String("employeeId"),
		"expenseDate":     v.String("expenseDate"),
		"amountRequested": json.Number(amount.Round(2).String()),
		"reason":          v.String("description"),
		"status":          StatusPending,
	}, nil
}

func TrainingPayload(v form.Values) (form.Payload, error) {
	return form.Payload{
		"employeeId":  v.String("employeeId"),
		"trainingId":  v.String("trainingId"),
		"sessionDate": v.String("sessionDate"),
		"motivation":  v.String("motivation"),
		"status":      StatusPending,
	}, nil
}
