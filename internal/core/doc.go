// Package core is the row-state engine of the asset console.
//
// It keeps, per logged-in user, the client-side state of the asset and
// employee tables: what the user searched for, which rows are selected,
// which cells were edited and which registration rows are still being
// typed. It reconciles that state with the asset backend through the
// [Backend] interface and never talks HTTP itself, so web handlers, CLI
// tools and tests drive it the same way.
//
// # Architecture
//
//   - Table Definitions: registered via the registry, each table names its
//     fields, owner resolution, payload builders and backend calls.
//   - Service and Workspace: one [Workspace] per console session holds the
//     loaded [TableView]s, open [RegistrationSession]s and history views.
//   - TableView: search, column filters, paging and the three modes
//     (viewing, bulk update, dispose/resign) over one loaded table.
//   - RegistrationSession: the multi-row create form with id allocation,
//     unique-key checks and a one-time spreadsheet seed.
//   - Audit: every accepted mutation is recorded through an [AuditStore].
//
// # Table Registry
//
// Tables are registered at init time using [Register]:
//
//	core.Register(TableDefinition{
//	    Info: TableInfo{Key: "assets", Label: "자산", IDField: "assetId"},
//	    FieldSpecs: []FieldSpec{
//	        {Name: "assetSn", Label: "시리얼번호", Editable: true, RequiredOnUpdate: true},
//	    },
//	    Load: loadAssets,
//	    SubmitUpdate: updateAssets,
//	})
//
// # Errors
//
// Rejections raised before any network call are [*ValidationError]s with a
// message ready for display. Failed backend calls come back as
// [*RequestError]. [MapError] turns any of them into a coded
// [UserMessage].
package core
