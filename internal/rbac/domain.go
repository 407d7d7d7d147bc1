// Package rbac resolves effective permissions and performs the
// fine-grained checks handlers run after auth enforcement.
package rbac

// Record module permissions.
const (
	PermRecordsView    = "records.view"
	PermRecordsEdit    = "records.edit"
	PermRecordsVerify  = "records.verify"
	PermRecordsCertify = "records.certify"
)

// RecordScopes lists all permissions of the records module.
func RecordScopes() []string {
	return []string{
		PermRecordsView,
		PermRecordsEdit,
		PermRecordsVerify,
		PermRecordsCertify,
	}
}
