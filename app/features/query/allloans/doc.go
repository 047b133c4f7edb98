// Package allloans implements the List All Loans use case for admins.
//
// Every borrow record of every user, newest first, with the derived overdue flag.
package allloans
