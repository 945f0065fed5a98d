package database

// rosterQuery returns one row per athlete or coach on each team of an event,
// ordered by team then user. $2 optionally narrows to one team.
const rosterQuery = `
SELECT
    e.id                                        AS event_id,
    e.name                                      AS event_name,
    t.name                                      AS team_name,
    t.id                                        AS team_id,
    ld.name                                     AS division,
    u.id                                        AS user_id,
    NULLIF(CONCAT_WS(' ', u.first_name, u.last_name), '') AS name,
    u.user_type_id                              AS usertype_id,
    u.phone                                     AS phone,
    u.email                                     AS email,
    u.avatar_url                                AS profile_pic,
    etr.jersey_number::text                     AS jersey_num,
    to_char(u.birthday, 'YYYY-MM-DD')           AS birthday
FROM events e
JOIN event_team_roster etr ON etr.event_id = e.id
JOIN teams t               ON t.id = etr.team_id
JOIN users u               ON u.id = etr.user_id
JOIN lookup_divisions ld   ON ld.id = t.division_id
WHERE e.id = $1
  AND ($2::bigint IS NULL OR etr.team_id = $2::bigint)
ORDER BY etr.team_id, u.id`

const partnerLogoQuery = `
SELECT p.logo
FROM events e
JOIN partners p ON p.id = e.partner_id
WHERE e.id = $1
LIMIT 1`
