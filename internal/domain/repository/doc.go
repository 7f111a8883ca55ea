// Package repository define los contratos del identity store que consume el
// authority. Son independientes del almacenamiento (memory, PostgreSQL).
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - Los usuarios se devuelven materializados: roles y permisos ya resueltos
//     (join eager). Nada aguas abajo hace I/O para decidir RBAC.
//   - Errores de dominio en errors.go; los drivers traducen los suyos.
package repository
