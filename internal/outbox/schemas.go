package outbox

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "title": {"type": "string"},
    "scheduled_at": {"type": "string", "format": "date-time"},
    "duration_min": {"type": "integer"},
    "capacity": {"type": "integer"},
    "difficulty": {"type": "string"}
  },
  "required": ["activity_id", "owner_id", "title", "scheduled_at", "duration_min", "capacity"],
  "additionalProperties": false
}`

const activityClosedSchema = `{
  "type": "object",
  "title": "ActivityClosed",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "reason": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "reason", "occurred_at"],
  "additionalProperties": false
}`

const enrollmentChangedSchema = `{
  "type": "object",
  "title": "EnrollmentChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "change": {"type": "string", "enum": ["joined", "left"]},
    "enrolled": {"type": "integer"},
    "capacity": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "change", "enrolled", "capacity", "occurred_at"],
  "additionalProperties": false
}`

const interestRecordedSchema = `{
  "type": "object",
  "title": "InterestRecorded",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "action": {"type": "string", "enum": ["like", "pass"]},
    "previous_action": {"type": "string", "enum": ["like", "pass"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "action", "occurred_at"],
  "additionalProperties": false
}`
